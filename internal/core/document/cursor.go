package document

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a cursor token cannot be decoded or does not fit the query.
var ErrInvalidCursor = errors.New("document: invalid cursor")

// Cursor marks a position in an ordered result set. A query resumes strictly after it.
type Cursor struct {
	Fields []string `json:"f,omitempty"`
	Values []any    `json:"v,omitempty"`
	ID     string   `json:"id"`
}

// CursorAt builds the cursor positioned on doc for the given ordering.
func CursorAt(doc *Document, order []Order) *Cursor {
	c := &Cursor{ID: doc.ID}
	for _, o := range order {
		v, _ := doc.Value(o.Field)
		c.Fields = append(c.Fields, o.Field)
		c.Values = append(c.Values, Normalize(v))
	}
	return c
}

// Encode renders the cursor as an opaque URL-safe token.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Encode. An empty token yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" || len(c.Fields) != len(c.Values) {
		return nil, ErrInvalidCursor
	}
	for i, v := range c.Values {
		c.Values[i] = Normalize(v)
	}
	return &c, nil
}

func (c *Cursor) compatible(order []Order) error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing document id", ErrInvalidCursor)
	}
	if len(c.Values) != len(order) {
		return fmt.Errorf("%w: cursor has %d values for %d order fields", ErrInvalidCursor, len(c.Values), len(order))
	}
	if len(c.Fields) == 0 {
		return nil
	}
	for i, o := range order {
		if c.Fields[i] != o.Field {
			return fmt.Errorf("%w: cursor field %q does not match order field %q", ErrInvalidCursor, c.Fields[i], o.Field)
		}
	}
	return nil
}
