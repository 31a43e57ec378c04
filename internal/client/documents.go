// ABOUTME: Knowledge document endpoints: list and create
// ABOUTME: Served at the backend root rather than under /v1/playground

package client

import (
	"context"
	"fmt"
	"net/http"
)

// Document is a knowledge document.
type Document struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Documents lists the knowledge documents.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.getJSON(ctx, routeDocuments, nil, &docs); err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return docs, nil
}

// CreateDocument uploads a new document.
func (c *Client) CreateDocument(ctx context.Context, name, content string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Document{Name: name, Content: content, Metadata: map[string]any{}}).
		Post(routeDocuments)
	if err := check(resp, err); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	if resp.StatusCode() != http.StatusCreated {
		c.logger.Warn("create document returned unexpected status", "status", resp.StatusCode())
	}
	return nil
}
