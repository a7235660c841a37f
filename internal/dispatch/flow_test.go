package dispatch

import (
	"testing"
	"time"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

func TestChunk(t *testing.T) {
	msgs := make([]map[string]any, 5)
	tests := []struct {
		size  int
		sizes []int
	}{
		{2, []int{2, 2, 1}},
		{5, []int{5}},
		{10, []int{5}},
		{0, []int{1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		got := chunk(msgs, tt.size)
		if len(got) != len(tt.sizes) {
			t.Fatalf("size %d: expected %d chunks, got %d", tt.size, len(tt.sizes), len(got))
		}
		for i, c := range got {
			if len(c) != tt.sizes[i] {
				t.Fatalf("size %d: chunk %d has %d items, want %d", tt.size, i, len(c), tt.sizes[i])
			}
		}
	}
	if chunk(nil, 3) != nil {
		t.Fatal("expected no chunks for no messages")
	}
}

func TestValidateMessages(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"areaCode": "11", "phone": "9", "text": "t", "idServiceType": 1, "variables": []any{}}
	}
	tests := []struct {
		name    string
		mutate  func(m map[string]any)
		wantErr bool
	}{
		{"complete", func(map[string]any) {}, false},
		{"missing phone", func(m map[string]any) { delete(m, "phone") }, true},
		{"empty text", func(m map[string]any) { m["text"] = "" }, true},
		{"null variables", func(m map[string]any) { m["variables"] = nil }, true},
		{"zero service type is present", func(m map[string]any) { m["idServiceType"] = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(m)
			err := validateMessages([]map[string]any{valid(), m})
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !domain.IsValidation(err) {
				t.Fatalf("expected a ValidationError, got %T", err)
			}
		})
	}
	if err := validateMessages(nil); err == nil {
		t.Fatal("expected an empty list to fail")
	}
}

func TestMessageLotBody_SendGroup(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 600_000_000, time.UTC)
	tests := []struct {
		group any
		want  bool
	}{
		{7, true},
		{"12", true},
		{0, false},
		{-1, false},
		{"", false},
	}
	for _, tt := range tests {
		s := domain.BuildSnapshot(domain.ActionConfig{"idBookBusinessSendGroup": tt.group, "startDate": "2024-02-01"})
		body, err := messageLotBody(s, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := body["idBookBusinessSendGroup"]; ok != tt.want {
			t.Fatalf("group %v: present=%v, want %v", tt.group, ok, tt.want)
		}
		if body["startDate"] != "2024-02-01" || body["endDate"] != "2024-01-02T03:04:05.600Z" {
			t.Fatalf("unexpected dates %v / %v", body["startDate"], body["endDate"])
		}
		if body["ServiceType"] != 1 {
			t.Fatalf("expected default service type 1, got %v", body["ServiceType"])
		}
	}
}

func TestLotEndpoint(t *testing.T) {
	got := lotEndpoint("https://p.test//", "/api/Lot/FinishLot/%s", "a b/c")
	if got != "https://p.test/api/Lot/FinishLot/a%20b%2Fc" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
