package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/repository"
	"github.com/notifyhub/lotdispatch/internal/template"
)

// requiredMessageFields must be present and non-empty on every message of a
// messages lot.
var requiredMessageFields = []string{"areaCode", "phone", "text", "idServiceType", "variables"}

// messageBuilder turns the group snapshot into one message per recipient.
type messageBuilder struct {
	contacts  repository.ContactRepository
	text      string
	variables []template.Pair
	data      []template.Pair
	base      map[string]any
}

func newMessageBuilder(s domain.ConfigSnapshot, contacts repository.ContactRepository) *messageBuilder {
	vars, _ := s.Extra("variables")
	data, _ := s.Extra("data")

	b := &messageBuilder{
		contacts:  contacts,
		text:      s.ExtraString("text", ""),
		variables: template.ParsePairs(vars),
		data:      template.ParsePairs(data),
	}
	b.base = map[string]any{
		"text":                  b.text,
		"idForeignBookBusiness": s.ExtraString("idForeignBookBusiness", ""),
		"variables":             pairList(b.variables),
		"idTemplate":            s.ExtraString("idTemplate", ""),
		"idServiceType":         s.ExtraInt("ServiceType", 1),
	}
	for _, p := range b.data {
		b.base[p.Key] = p.Value
	}
	return b
}

// build assembles the message for one queue item. Profile tokens resolve in
// the text, the variable values and the data values; payload tokens are
// overlaid next; a final pass resolves whatever those steps introduced.
func (b *messageBuilder) build(ctx context.Context, item *domain.QueueItem) (map[string]any, error) {
	tokens := decodePayload(item.Payload)
	recipientID := domain.StringValue(tokens[domain.RecipientIDKey], "")
	delete(tokens, domain.RecipientIDKey)

	msg := make(map[string]any, len(b.base)+len(tokens))
	for k, v := range b.base {
		msg[k] = v
	}

	var r *template.Replacer
	if recipientID != "" {
		profile, err := b.contacts.GetProfile(ctx, recipientID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load recipient %s: %w", recipientID, err)
		default:
			r = template.NewReplacer(template.Profile(profile))
		}
	}

	if r != nil {
		msg["text"] = r.Text(b.text)
		msg["variables"] = pairList(r.ResolvePairs(b.variables))
		for _, p := range b.data {
			msg[p.Key] = r.Apply(p.Value)
		}
	}

	keys := make([]string, 0, len(tokens))
	for k := range tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := tokens[k]
		if r != nil {
			v = r.Apply(v)
		}
		msg[k] = v
	}

	if r != nil {
		msg = r.Apply(msg).(map[string]any)
	}
	return msg, nil
}

// validateMessages enforces the required fields of a messages lot.
// An empty variables list is accepted; a missing or null one is not.
func validateMessages(msgs []map[string]any) error {
	if len(msgs) == 0 {
		return &domain.ValidationError{Stage: "AddMessageToLot", Reason: "messages payload must be a non-empty list"}
	}
	for i, m := range msgs {
		for _, k := range requiredMessageFields {
			v, ok := m[k]
			if !ok || v == nil || v == "" {
				return &domain.ValidationError{
					Stage:  "AddMessageToLot",
					Reason: fmt.Sprintf("message[%d] missing or empty field %q", i, k),
				}
			}
		}
	}
	return nil
}

func decodePayload(raw []byte) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func pairList(pairs []template.Pair) []any {
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = map[string]any{"key": p.Key, "value": p.Value}
	}
	return out
}
