package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

// ActivityIndexer records login events in an audit index. Callers treat
// it as fire-and-forget; a failed write never blocks a login response.
type ActivityIndexer struct {
	ES    *elasticsearch.Client
	Index string
}

type loginEvent struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

func (a *ActivityIndexer) IndexLogin(ctx context.Context, userID uint, username string) error {
	doc := loginEvent{
		Type:     "user_login",
		UserID:   userID,
		Username: username,
		At:       time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("es: marshal login event: %w", err)
	}

	res, err := a.ES.Index(a.Index, bytes.NewReader(body), a.ES.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: index login event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("es: index login event: %s", res.Status())
	}

	return nil
}
