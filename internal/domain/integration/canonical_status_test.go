package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		statusID   *int
		statusText *string
		expected   string
		raw        bool
	}{
		{"known id wins", intPtr(5), strPtr(""), "Verified", false},
		{"known id wins over text", intPtr(5), strPtr("Something else"), "Verified", false},
		{"known id without text", intPtr(8), nil, "Canceled", false},
		{"unknown id with text returns text", intPtr(999), strPtr("Custom"), "Custom", true},
		{"text is trimmed", intPtr(999), strPtr("  Custom  "), "Custom", true},
		{"unknown id without text", intPtr(999), strPtr(""), "Status 999", true},
		{"unknown id with blank text", intPtr(999), strPtr("   "), "Status 999", true},
		{"no id and empty text", nil, strPtr(""), "Awaiting Processing", false},
		{"no id and no text", nil, nil, "Awaiting Processing", false},
		{"text only", nil, strPtr("On Hold"), "On Hold", true},
		{"text matching a known name", nil, strPtr("Verified"), "Verified", false},
		{"negative id is unmapped", intPtr(-1), nil, "Status -1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Classify(tt.statusID, tt.statusText)
			assert.Equal(t, tt.expected, status.Name())
			assert.Equal(t, tt.raw, status.IsRaw())
		})
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, Classify(intPtr(5), strPtr("")), Classify(intPtr(5), strPtr("")))
		assert.Equal(t, Classify(intPtr(42), nil), Classify(intPtr(42), nil))
	}
}

func TestClassify_EveryTableEntryHasAName(t *testing.T) {
	for id, code := range statusTable {
		status := Classify(intPtr(id), nil)
		assert.Equal(t, code, status.Code)
		assert.NotEmpty(t, status.Name())
		assert.False(t, status.IsRaw())
		assert.True(t, code.IsValid())
	}
}

func TestParseCanonicalStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected CanonicalStatus
	}{
		{"known name", "Verified", StatusOf(StatusCodeVerified)},
		{"known name with spaces", " Shipped ", StatusOf(StatusCodeShipped)},
		{"sentinel", "Awaiting Processing", StatusOf(StatusCodeAwaitingProcessing)},
		{"unknown name", "Picking", RawStatus("Picking")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCanonicalStatus(tt.input))
		})
	}
}

func TestCanonicalStatus_Equal(t *testing.T) {
	assert.True(t, StatusOf(StatusCodeVerified).Equal(ParseCanonicalStatus("Verified")))
	assert.True(t, RawStatus("Verified").Equal(StatusOf(StatusCodeVerified)))
	assert.False(t, RawStatus("Status 5").Equal(StatusOf(StatusCodeVerified)))
}

func TestStatusCode_IsValid(t *testing.T) {
	assert.True(t, StatusCodeRaw.IsValid())
	assert.True(t, StatusCodeAwaitingProcessing.IsValid())
	assert.True(t, StatusCodeCompleted.IsValid())
	assert.False(t, StatusCode("UNKNOWN").IsValid())
	assert.False(t, StatusCode("").IsValid())
}
