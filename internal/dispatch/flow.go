package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

const isoMillisUTC = "2006-01-02T15:04:05.000Z"

// flowPolicy is everything that differs between the four flows. Batched
// flows use the three lot paths; single flows only singlePath.
type flowPolicy struct {
	flow    domain.Flow
	batched bool

	createPath string
	addPath    string // %s is the escaped lot id
	finishPath string // %s is the escaped lot id
	singlePath string

	createBody       func(s domain.ConfigSnapshot, now time.Time) (map[string]any, error)
	wrapChunk        func(chunk []map[string]any) any
	validateMessages bool
}

var policies = map[domain.Flow]flowPolicy{
	domain.FlowMessagesBatch: {
		flow:             domain.FlowMessagesBatch,
		batched:          true,
		createPath:       "/api/Lot/CreateLot",
		addPath:          "/api/Lot/AddMessageToLot/%s",
		finishPath:       "/api/Lot/FinishLot/%s",
		createBody:       messageLotBody,
		wrapChunk:        func(chunk []map[string]any) any { return chunk },
		validateMessages: true,
	},
	domain.FlowEmailsBatch: {
		flow:       domain.FlowEmailsBatch,
		batched:    true,
		createPath: "/api/Email/CreateLot",
		addPath:    "/api/Email/AddEmailToLot/%s",
		finishPath: "/api/Email/FinishLot/%s",
		createBody: emailLotBody,
		wrapChunk:  func(chunk []map[string]any) any { return map[string]any{"data": chunk} },
	},
	domain.FlowMessagesSingle: {
		flow:       domain.FlowMessagesSingle,
		singlePath: "/api/Message/AddMessageInvoice",
	},
	domain.FlowEmailsSingle: {
		flow:       domain.FlowEmailsSingle,
		singlePath: "/api/Email/AddEmailInvoice",
	},
}

func policyFor(f domain.Flow) flowPolicy {
	if p, ok := policies[f]; ok {
		return p
	}
	return policies[domain.FlowMessagesBatch]
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func lotEndpoint(base, pathFmt, lotID string) string {
	return endpoint(base, fmt.Sprintf(pathFmt, url.PathEscape(lotID)))
}

// messageLotBody builds the CreateLot request of the messages flow. The send
// group is only included when positive; dates default to now.
func messageLotBody(s domain.ConfigSnapshot, now time.Time) (map[string]any, error) {
	nowISO := now.UTC().Format(isoMillisUTC)
	body := map[string]any{
		"name":              s.ExtraString("name", ""),
		"ServiceType":       s.ExtraInt("ServiceType", 1),
		"user":              s.ExtraString("user", ""),
		"idQuotaSettings":   s.ExtraInt("idQuotaSettings", 0),
		"idServiceSettings": s.ExtraInt("idServiceSettings", 0),
		"imageUrl":          s.ExtraString("imageUrl", ""),
		"imageName":         s.ExtraString("imageName", ""),
		"startDate":         s.ExtraString("startDate", nowISO),
		"endDate":           s.ExtraString("endDate", nowISO),
	}
	if g, ok := s.Extra("idBookBusinessSendGroup"); ok && g != nil && g != "" {
		if n := domain.IntValue(g, 0); n > 0 {
			body["idBookBusinessSendGroup"] = n
		}
	}
	if err := validateLotBody(body); err != nil {
		return nil, err
	}
	return body, nil
}

func emailLotBody(s domain.ConfigSnapshot, _ time.Time) (map[string]any, error) {
	return map[string]any{
		"user":                    s.ExtraString("user", ""),
		"idQuotaSettings":         s.ExtraInt("idQuotaSettings", 0),
		"idServiceSettings":       s.ExtraInt("idServiceSettings", 0),
		"idBookBusinessSendGroup": s.ExtraInt("idBookBusinessSendGroup", 0),
		"name":                    s.ExtraString("name", ""),
	}, nil
}

// validateLotBody checks the create-lot request encodes as a JSON object.
func validateLotBody(body map[string]any) error {
	if body == nil {
		return &domain.ValidationError{Stage: "CreateLot", Reason: "payload must be an object"}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return &domain.ValidationError{Stage: "CreateLot", Reason: err.Error()}
	}
	if len(raw) == 0 || raw[0] != '{' {
		return &domain.ValidationError{Stage: "CreateLot", Reason: "payload must be an object"}
	}
	return nil
}

// chunk splits msgs into consecutive slices of at most size items.
// A non-positive size is clamped to 1.
func chunk(msgs []map[string]any, size int) [][]map[string]any {
	if size < 1 {
		size = 1
	}
	var out [][]map[string]any
	for start := 0; start < len(msgs); start += size {
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		out = append(out, msgs[start:end])
	}
	return out
}
