// Package notion publishes block trees under a Notion page.
package notion

import (
	"context"
	"errors"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/blocks"
)

// blockAPI is the part of notionapi.BlockService the publisher uses.
type blockAPI interface {
	AppendChildren(ctx context.Context, id notionapi.BlockID, req *notionapi.AppendBlockChildrenRequest) (*notionapi.AppendBlockChildrenResponse, error)
	Delete(ctx context.Context, id notionapi.BlockID) (notionapi.Block, error)
}

type Publisher struct {
	api blockAPI
	log logrus.FieldLogger
}

func NewPublisher(token string, log logrus.FieldLogger) (*Publisher, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("NOTION_TOKEN is empty")
	}
	c := notionapi.NewClient(notionapi.Token(token))
	return newPublisher(c.Block, log), nil
}

func newPublisher(api blockAPI, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{api: api, log: log}
}

// Publish appends the tree under parentID and returns the id of the root
// block. The API accepts two levels of nesting per request, so the root is
// created first and the option toggles are appended to it; if that second
// call fails the root is deleted again.
func (p *Publisher) Publish(ctx context.Context, parentID string, tree blocks.Tree) (string, error) {
	root := toNotion(blocks.Block{Kind: tree.Root.Kind, Spans: tree.Root.Spans})
	resp, err := p.api.AppendChildren(ctx, notionapi.BlockID(parentID), &notionapi.AppendBlockChildrenRequest{
		Children: []notionapi.Block{root},
	})
	if err != nil {
		return "", classify(err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return "", &Error{Reason: Transient, Err: errors.New("append returned no blocks")}
	}
	rootID := resp.Results[0].GetID()
	log := p.log.WithField("block_id", rootID.String())

	children := make([]notionapi.Block, 0, len(tree.Root.Children))
	for _, c := range tree.Root.Children {
		children = append(children, toNotion(c))
	}
	if len(children) > 0 {
		if _, err := p.api.AppendChildren(ctx, rootID, &notionapi.AppendBlockChildrenRequest{Children: children}); err != nil {
			if _, derr := p.api.Delete(context.WithoutCancel(ctx), rootID); derr != nil {
				log.WithError(derr).Error("partial question left on page; delete failed")
			}
			return "", classify(err)
		}
	}
	log.WithField("toggles", len(children)).Info("question published")
	return rootID.String(), nil
}

func toNotion(b blocks.Block) notionapi.Block {
	rt := richText(b.Spans)
	kids := make(notionapi.Blocks, 0, len(b.Children))
	for _, c := range b.Children {
		kids = append(kids, toNotion(c))
	}
	if len(kids) == 0 {
		kids = nil
	}

	switch b.Kind {
	case blocks.KindToggle:
		return &notionapi.ToggleBlock{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeToggle},
			Toggle:     notionapi.Toggle{RichText: rt, Children: kids},
		}
	case blocks.KindNumberedItem:
		return &notionapi.NumberedListItemBlock{
			BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeNumberedListItem},
			NumberedListItem: notionapi.ListItem{RichText: rt, Children: kids},
		}
	default:
		return &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
			Paragraph:  notionapi.Paragraph{RichText: rt, Children: kids},
		}
	}
}

func richText(spans []blocks.Span) []notionapi.RichText {
	out := make([]notionapi.RichText, 0, len(spans))
	for _, s := range spans {
		color := notionapi.ColorDefault
		switch s.Color {
		case blocks.ColorGreen:
			color = notionapi.ColorGreen
		case blocks.ColorRed:
			color = notionapi.ColorRed
		}
		out = append(out, notionapi.RichText{
			Type:        notionapi.ObjectTypeText,
			Text:        &notionapi.Text{Content: s.Text},
			PlainText:   s.Text,
			Annotations: &notionapi.Annotations{Bold: s.Bold, Code: s.Code, Color: color},
		})
	}
	return out
}
