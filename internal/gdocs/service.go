// Package gdocs writes directives into Google Docs.
package gdocs

import (
	"context"
	"fmt"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

// Service is the subset of the Docs API the writer uses.
type Service interface {
	Create(ctx context.Context, title string) (string, error)
	BatchUpdate(ctx context.Context, documentID string, reqs []*docs.Request) error
	Get(ctx context.Context, documentID string) (*docs.Document, error)
}

// Google implements Service over the Docs v1 API.
type Google struct {
	srv *docs.Service
}

// NewGoogle builds a Docs client. Credentials come from opts, typically
// option.WithCredentialsFile.
func NewGoogle(ctx context.Context, opts ...option.ClientOption) (*Google, error) {
	srv, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdocs: new service: %w", err)
	}
	return &Google{srv: srv}, nil
}

func (g *Google) Create(ctx context.Context, title string) (string, error) {
	doc, err := g.srv.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gdocs: create: %w", err)
	}
	return doc.DocumentId, nil
}

func (g *Google) BatchUpdate(ctx context.Context, documentID string, reqs []*docs.Request) error {
	_, err := g.srv.Documents.BatchUpdate(documentID, &docs.BatchUpdateDocumentRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gdocs: batch update %s (%d requests): %w", documentID, len(reqs), err)
	}
	return nil
}

func (g *Google) Get(ctx context.Context, documentID string) (*docs.Document, error) {
	doc, err := g.srv.Documents.Get(documentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gdocs: get %s: %w", documentID, err)
	}
	return doc, nil
}

// URL is the browser link of a document.
func URL(documentID string) string {
	return "https://docs.google.com/document/d/" + documentID + "/edit"
}
