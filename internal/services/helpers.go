package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ListOptions is the shared pagination window for list operations.
type ListOptions struct {
	Page    int
	PerPage int
}

func (o ListOptions) normalise() (page, perPage, offset int) {
	page = o.Page
	if page <= 0 {
		page = 1
	}
	perPage = o.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func encodeJSON(value map[string]any) datatypes.JSON {
	if len(value) == 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
