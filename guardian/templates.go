package guardian

import (
	"text/template"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/util"
)

// StateToolName is the tool the soft band asks the agent to save progress with.
const StateToolName = "session_state"

// Templates holds the text/template sources of the band messages.
// Templates are executed with a MessageData value.
type Templates struct {
	Info     string `yaml:"info" json:"info"`
	Soft     string `yaml:"soft" json:"soft"`
	Hard     string `yaml:"hard" json:"hard"`
	SoftUser string `yaml:"soft_user" json:"soft_user"`
	HardUser string `yaml:"hard_user" json:"hard_user"`
}

// DefaultTemplates returns the built-in band wording.
func DefaultTemplates() Templates {
	return Templates{
		Info:     "[Session Guardian: {{.Percent}}% context used, turn {{.Turn}}]",
		Soft:     "[Session Guardian: {{.Percent}}% context. Save progress with {{.Tool}} tool now. Continue working but be concise.]",
		Hard:     "[Session Guardian: {{.Percent}}% context. HANDOFF REQUIRED. Save state immediately and tell the user to start a new session.]",
		SoftUser: "Session Guardian: {{.Percent}}% context used, saving progress recommended",
		HardUser: "Session Guardian: {{.Percent}}% context used, handoff required!",
	}
}

// MessageData is the template input.
type MessageData struct {
	Percent       int
	Turn          int
	InputTokens   int
	ContextWindow int
	Tool          string
}

type messageSet struct {
	info, soft, hard, softUser, hardUser *template.Template
}

func newMessageSet(overrides Templates) (*messageSet, error) {
	t := DefaultTemplates()
	if overrides.Info != "" {
		t.Info = overrides.Info
	}
	if overrides.Soft != "" {
		t.Soft = overrides.Soft
	}
	if overrides.Hard != "" {
		t.Hard = overrides.Hard
	}
	if overrides.SoftUser != "" {
		t.SoftUser = overrides.SoftUser
	}
	if overrides.HardUser != "" {
		t.HardUser = overrides.HardUser
	}

	ms := &messageSet{}
	for _, p := range []struct {
		dst  **template.Template
		name string
		src  string
	}{
		{&ms.info, "info", t.Info},
		{&ms.soft, "soft", t.Soft},
		{&ms.hard, "hard", t.Hard},
		{&ms.softUser, "soft_user", t.SoftUser},
		{&ms.hardUser, "hard_user", t.HardUser},
	} {
		tmpl, err := util.ParseTemplate(p.name, p.src)
		if err != nil {
			return nil, err
		}
		*p.dst = tmpl
	}

	return ms, nil
}

func (ms *messageSet) render(d *Decision, data MessageData) error {
	var (
		injection, user *template.Template
		level           core.MessageLevel
	)

	switch d.Band {
	case BandInfo:
		injection = ms.info
	case BandSoft:
		injection, user, level = ms.soft, ms.softUser, core.LevelWarning
	default:
		injection, user, level = ms.hard, ms.hardUser, core.LevelError
	}

	text, err := util.RenderTemplate(injection, data)
	if err != nil {
		return err
	}
	d.Injection = text

	if user == nil {
		return nil
	}

	msg, err := util.RenderTemplate(user, data)
	if err != nil {
		return err
	}
	d.UserMessage = msg
	d.Level = level

	return nil
}
