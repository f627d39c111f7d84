package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/batch"
	"github.com/sells-group/bizdir/internal/importer"
	"github.com/sells-group/bizdir/internal/model"
	"github.com/sells-group/bizdir/internal/provenance"
	"github.com/sells-group/bizdir/internal/store"
	"github.com/sells-group/bizdir/internal/validate"
)

func importForValidation(t *testing.T, st store.Store) string {
	t.Helper()
	im := importer.New(st, provenance.NewRecorder(st, nil))
	out, err := importer.NewRunner(st, im, batch.NewTracker(st)).Run(context.Background(), []model.BusinessRecord{
		{Name: "Acme Plumbing", Address: "12 Main St", City: "Mesa", State: "AZ", Phone: "(480) 555-0100"},
		{Name: "Desert Dental", Address: "1 Oak Rd", City: "Tempe", State: "AZ", Phone: "(480) 555-0111"},
	}, importer.RunOptions{Type: "csv", ImportedBy: "cli", Source: "csv_upload"})
	require.NoError(t, err)
	return out.Batch.ID
}

func TestValidateCmd_Flags(t *testing.T) {
	assert.Equal(t, "false", validateCmd.Flags().Lookup("full").DefValue)
	assert.Equal(t, "", validateListCmd.Flags().Lookup("batch").DefValue)
	assert.Equal(t, "50", validateListCmd.Flags().Lookup("limit").DefValue)

	_, err := runCommand(t, validateCmd)
	assert.Error(t, err)
}

func TestValidateCmd_RunAndList(t *testing.T) {
	st := useTestStore(t)
	id := importForValidation(t, st)

	setFlag(t, validateCmd, "full", "true")
	out, err := runCommand(t, validateCmd, id)
	require.NoError(t, err)
	var res model.ValidationResults
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, id, res.BatchID)
	assert.Equal(t, model.ValidationCompleted, res.Status)
	assert.True(t, res.RunFullValidation)
	assert.False(t, res.SEOCompliance.Skipped)
	assert.Len(t, res.SampleBusinesses, 2)

	setFlag(t, validateListCmd, "batch", id)
	out, err = runCommand(t, validateListCmd)
	require.NoError(t, err)
	var list []model.ValidationResults
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, res.ID, list[0].ID)
}

func TestValidateCmd_MissingBatch(t *testing.T) {
	st := useTestStore(t)

	_, err := runCommand(t, validateCmd, "nope")
	assert.ErrorIs(t, err, validate.ErrBatchNotFound)

	stored, err := st.ListValidationResults(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
