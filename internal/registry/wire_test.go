package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseRunPayloadWireFormat(t *testing.T) {
	payload := CourseRunPayload{
		CourseRunCode: "FIN-2024-01",
		CourseCode:    "FIN-LIT-101",
		StartDate:     "2024-06-01",
		EndDate:       "2024-06-30",
		Capacity:      20,
		Location:      nil,
	}

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"courseRunCode":"FIN-2024-01","courseCode":"FIN-LIT-101","startDate":"2024-06-01","endDate":"2024-06-30","capacity":20,"location":null}`,
		string(raw))
}

func TestCoursePayloadKeepsNullDescription(t *testing.T) {
	raw, err := json.Marshal(CoursePayload{CourseCode: "FIN-LIT-101", CourseTitle: "Financial Literacy", PublishFlag: true})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"courseCode":"FIN-LIT-101","courseTitle":"Financial Literacy","description":null,"publishFlag":true}`,
		string(raw))
}
