package main

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/review"
)

func TestReviewsCmd_Flags(t *testing.T) {
	assert.Equal(t, "analyze", reviewsAnalyzeCmd.Name())
	assert.Equal(t, "0", reviewsAnalyzeCmd.Flags().Lookup("batch-size").DefValue)
	assert.Equal(t, "false", reviewsAnalyzeCmd.Flags().Lookup("force").DefValue)

	_, err := runCommand(t, reviewsAnalyzeCmd)
	assert.Error(t, err)
}

func TestReviewsAnalyzeCmd(t *testing.T) {
	st := useTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, st.CreateBusiness(ctx, &model.Business{ID: "biz-1", Name: "Acme Plumbing", Slug: "acme-plumbing", CreatedAt: now, UpdatedAt: now}))
	for i := range 3 {
		require.NoError(t, st.CreateReview(ctx, &model.Review{
			ID:         fmt.Sprintf("r%d", i),
			BusinessID: "biz-1",
			Rating:     5,
			Text:       "Quick, honest and professional work on our water heater.",
			CreatedAt:  now.Add(time.Duration(i) * time.Minute),
		}))
	}

	decode := func(out string) review.Response {
		t.Helper()
		var resp review.Response
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp
	}

	out, err := runCommand(t, reviewsAnalyzeCmd, "biz-1")
	require.NoError(t, err)
	first := decode(out)
	assert.True(t, first.Success)
	assert.Equal(t, 3, first.Analyzed)
	require.NotNil(t, first.Insights)

	out, err = runCommand(t, reviewsAnalyzeCmd, "biz-1")
	require.NoError(t, err)
	again := decode(out)
	assert.Equal(t, 0, again.Analyzed)
	assert.Equal(t, 3, again.Skipped)

	setFlag(t, reviewsAnalyzeCmd, "force", "true")
	out, err = runCommand(t, reviewsAnalyzeCmd, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 3, decode(out).Analyzed)
}

func TestReviewsAnalyzeCmd_UnknownBusiness(t *testing.T) {
	useTestStore(t)

	_, err := runCommand(t, reviewsAnalyzeCmd, "missing")
	assert.ErrorIs(t, err, review.ErrBusinessNotFound)
}
