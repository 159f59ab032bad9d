package station

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnID(t *testing.T) {
	id, err := NewTurnID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "TRN-"))
	assert.Len(t, id, 14)

	other, err := NewTurnID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestSessionLog_Append(t *testing.T) {
	log := NewSessionLog()

	first := log.Append(PhaseHistory, testStart, "Hello")
	log.Append(PhaseICE, testStart.Add(1), "Any worries?")

	assert.Equal(t, "Hello", first.Text)
	assert.Equal(t, PhaseHistory, first.Phase)
	assert.Equal(t, []string{"Hello", "Any worries?"}, log.Questions())
	assert.NotEqual(t, log.Turns[0].ID, log.Turns[1].ID)
}

func TestSessionLog_RecordRepeat(t *testing.T) {
	log := NewSessionLog()

	log.RecordRepeat("Where is the pain?", 0)
	assert.Zero(t, log.Repetitions)
	assert.Empty(t, log.Duplicates)

	log.RecordRepeat("Where is the pain?", 1)
	log.RecordRepeat("Where is the pain?", 2)
	log.RecordRepeat("where is the pain", 3)

	assert.Equal(t, 3, log.Repetitions)
	assert.Equal(t, []string{"Where is the pain?", "where is the pain"}, log.Duplicates)
}

func TestSessionLog_LabelsOnlyGrow(t *testing.T) {
	log := NewSessionLog()
	for _, d := range Domains {
		assert.Empty(t, log.Coverage(d))
	}

	log.AddLabels(Classify("Any allergies?"))
	log.AddLabels(Classify("Any allergies?"))
	log.AddLabels(Classify("Can you tell me about your pain?"))
	log.AddLabels(nil)

	assert.Equal(t, []string{"allergies", "symptom_analysis"}, log.Coverage(DomainDataGathering))
	assert.Empty(t, log.Coverage(DomainManagement))

	log.AddLabels([]Label{{Domain: "other", Name: "x"}})
	assert.Equal(t, []string{"x"}, log.Coverage("other"))
}

func TestSessionLog_CloneIsDeep(t *testing.T) {
	log := NewSessionLog()
	log.Append(PhaseHistory, testStart, "Any family history?")
	log.AddLabels(Classify("Any family history?"))
	log.RecordRepeat("Any family history?", 1)

	clone := log.Clone()
	log.Append(PhaseHistory, testStart, "Any allergies?")
	log.AddLabels(Classify("Any allergies?"))
	log.RecordRepeat("Any allergies?", 1)

	assert.Len(t, clone.Turns, 1)
	assert.Equal(t, []string{"Any family history?"}, clone.Duplicates)
	assert.Equal(t, 1, clone.Repetitions)
	assert.Equal(t, []string{"family_history"}, clone.Coverage(DomainDataGathering))
}
