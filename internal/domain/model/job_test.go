//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusStopped.Terminal())
	assert.False(t, JobStatus("paused").Valid())
}

func TestParseDateFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    DateFilter
		wantErr bool
	}{
		{in: "all", want: DateFilterAll},
		{in: " Week ", want: DateFilterWeek},
		{in: "twoWeeks", want: DateFilterTwoWeeks},
		{in: "two_weeks", want: DateFilterTwoWeeks},
		{in: "2weeks", want: DateFilterTwoWeeks},
		{in: "month", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDateFilter(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateFilter_UnmarshalJSON(t *testing.T) {
	var req struct {
		DateFilter DateFilter `json:"date_filter"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date_filter":"TWOWEEKS"}`), &req))
	assert.Equal(t, DateFilterTwoWeeks, req.DateFilter)

	err := json.Unmarshal([]byte(`{"date_filter":"year"}`), &req)
	require.Error(t, err)
}

func TestCreateJobRequest_Validate(t *testing.T) {
	blank := "  "
	name := "Blue Bottle"

	require.NoError(t, (&CreateJobRequest{DateFilter: DateFilterAll}).Validate())
	require.NoError(t, (&CreateJobRequest{DateFilter: DateFilterWeek, CompanyFilter: &name}).Validate())
	require.Error(t, (&CreateJobRequest{DateFilter: "bogus"}).Validate())
	require.Error(t, (&CreateJobRequest{DateFilter: DateFilterWeek, CompanyFilter: &blank}).Validate())
}

func TestJobCounters_Add(t *testing.T) {
	a := JobCounters{TotalReviews: 3, SuccessCount: 2, ErrorCount: 1}
	b := JobCounters{TotalReviews: 4, SuccessCount: 4}
	assert.Equal(t, JobCounters{TotalReviews: 7, SuccessCount: 6, ErrorCount: 1}, a.Add(b))
}

func TestFinishJobRequest_Validate(t *testing.T) {
	require.NoError(t, FinishJobRequest{Status: JobStatusStopped}.Validate())
	require.Error(t, FinishJobRequest{Status: JobStatusRunning}.Validate())
}
