package casefile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when no case matches the requested key.
var ErrNotFound = errors.New("case not found")

// Repository supplies immutable case records by id or keyword.
type Repository interface {
	GetCase(ctx context.Context, keyOrID string) (*Case, error)
}

// Station types
const (
	StationHistory     = "history"
	StationCounselling = "counselling"
)

type SocialHistory struct {
	Smoking  string `json:"smoking" yaml:"smoking"`
	Alcohol  string `json:"alcohol" yaml:"alcohol"`
	Diet     string `json:"diet" yaml:"diet"`
	Exercise string `json:"exercise" yaml:"exercise"`
}

// ICE holds the patient's Ideas, Concerns and Expectations.
type ICE struct {
	Ideas        string `json:"ideas" yaml:"ideas"`
	Concerns     string `json:"concerns" yaml:"concerns"`
	Expectations string `json:"expectations" yaml:"expectations"`
}

type Examination struct {
	Vitals     map[string]string `json:"vitals,omitempty" yaml:"vitals,omitempty"`
	GPE        string            `json:"gpe,omitempty" yaml:"gpe,omitempty"`
	SkinExam   string            `json:"skin_exam,omitempty" yaml:"skin_exam,omitempty"`
	CardioExam string            `json:"cardio_exam,omitempty" yaml:"cardio_exam,omitempty"`
	RespExam   string            `json:"resp_exam,omitempty" yaml:"resp_exam,omitempty"`
}

// RiskFactors feeds the family-history disclosure logic.
type RiskFactors struct {
	FamilyRelevant    []string `json:"family_relevant,omitempty" yaml:"family_relevant,omitempty"`
	FamilyDistractors []string `json:"family_distractors,omitempty" yaml:"family_distractors,omitempty"`
}

// Case is a scripted station. It is loaded once per session and never
// mutated by the session engine.
type Case struct {
	ID          string `json:"case_id" yaml:"case_id"`
	StationName string `json:"station_name" yaml:"station_name"`
	StationType string `json:"station_type,omitempty" yaml:"station_type,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	SubCategory string `json:"sub_category,omitempty" yaml:"sub_category,omitempty"`

	// Patient persona
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Age  string `json:"age,omitempty" yaml:"age,omitempty"`

	Diagnosis             string        `json:"diagnosis" yaml:"diagnosis"`
	PresentingComplaint   string        `json:"presenting_complaint" yaml:"presenting_complaint"`
	Symptoms              []string      `json:"symptoms" yaml:"symptoms"`
	RedFlags              []string      `json:"red_flags" yaml:"red_flags"`
	Differentials         []string      `json:"differentials" yaml:"differentials"`
	MedicalHistory        []string      `json:"medical_history" yaml:"medical_history"`
	Medications           []string      `json:"medications" yaml:"medications"`
	FamilyHistory         []string      `json:"family_history" yaml:"family_history"`
	SocialHistory         SocialHistory `json:"social_history" yaml:"social_history"`
	ICE                   ICE           `json:"ice" yaml:"ice"`
	ExamFindings          string        `json:"exam_findings,omitempty" yaml:"exam_findings,omitempty"`
	Examination           Examination   `json:"examination,omitempty" yaml:"examination,omitempty"`
	InvestigationFindings string        `json:"investigation_findings,omitempty" yaml:"investigation_findings,omitempty"`
	RiskFactors           RiskFactors   `json:"risk_factors,omitempty" yaml:"risk_factors,omitempty"`

	// Source file, set by DirRepository.
	Path string `json:"-" yaml:"-"`
}

var miSymptoms = []string{
	"exertional chest pain",
	"radiates to left arm",
	"relieved by rest",
	"sweating",
	"shortness of breath",
	"nausea",
}

// Enrich fills fields the case author left out but the diagnosis implies.
func Enrich(c *Case) *Case {
	diagnosis := strings.ToLower(c.Diagnosis)
	if len(c.Symptoms) == 0 &&
		(strings.Contains(diagnosis, "myocardial infarction") || strings.Contains(diagnosis, "heart attack")) {
		c.Symptoms = append([]string(nil), miSymptoms...)
	}
	if c.StationType == "" {
		c.StationType = StationHistory
	}
	return c
}

// ExaminationSummary renders vitals, system examinations and free-text
// findings as plain lines.
func (c *Case) ExaminationSummary() string {
	var lines []string
	if len(c.Examination.Vitals) > 0 {
		lines = append(lines, "Vital signs:")
		keys := make([]string, 0, len(c.Examination.Vitals))
		for k := range c.Examination.Vitals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s: %s", k, c.Examination.Vitals[k]))
		}
	}
	systems := []struct{ label, value string }{
		{"General Appearance", c.Examination.GPE},
		{"Skin Exam", c.Examination.SkinExam},
		{"Cardiovascular Exam", c.Examination.CardioExam},
		{"Respiratory Exam", c.Examination.RespExam},
	}
	for _, s := range systems {
		if s.value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", s.label, s.value))
		}
	}
	if c.ExamFindings != "" {
		lines = append(lines, c.ExamFindings)
	}
	if len(lines) == 0 {
		return "N/A"
	}
	return strings.Join(lines, "\n")
}

// Summary renders the case block an examiner reads before marking.
func (c *Case) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Station: %s\n", orNA(c.StationName))
	fmt.Fprintf(&b, "- Diagnosis: %s\n", orNA(c.Diagnosis))
	fmt.Fprintf(&b, "- Presenting Complaint: %s\n", orNA(c.PresentingComplaint))
	fmt.Fprintf(&b, "- Symptoms: %s\n", strings.Join(c.Symptoms, ", "))
	fmt.Fprintf(&b, "- Red Flags: %s\n", strings.Join(c.RedFlags, ", "))
	fmt.Fprintf(&b, "- Differentials: %s\n", strings.Join(c.Differentials, ", "))
	fmt.Fprintf(&b, "- PMH: %s\n", strings.Join(c.MedicalHistory, ", "))
	fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(c.Medications, ", "))
	fmt.Fprintf(&b, "- Family History: %s\n", strings.Join(c.FamilyHistory, ", "))
	fmt.Fprintf(&b, "- Social History: Smoking: %s, Alcohol: %s, Diet: %s, Exercise: %s\n",
		orNA(c.SocialHistory.Smoking), orNA(c.SocialHistory.Alcohol),
		orNA(c.SocialHistory.Diet), orNA(c.SocialHistory.Exercise))
	fmt.Fprintf(&b, "- ICE: Ideas: %s | Concerns: %s | Expectations: %s\n",
		c.ICE.Ideas, c.ICE.Concerns, c.ICE.Expectations)
	fmt.Fprintf(&b, "- Exam Findings: %s\n", c.ExaminationSummary())
	fmt.Fprintf(&b, "- Investigation Findings: %s", orNA(c.InvestigationFindings))
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
