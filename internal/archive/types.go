package archive

// ProjectMetadata mirrors projects/<slug>/project.json. Only human_key is
// load-bearing; slug is cross-checked against the directory name.
type ProjectMetadata struct {
	Slug      string `json:"slug"`
	HumanKey  string `json:"human_key"`
	CreatedTs int64  `json:"created_ts"`
}

// AgentProfile mirrors agents/<name>/profile.json.
type AgentProfile struct {
	Name          string      `json:"name"`
	Program       string      `json:"program"`
	Model         string      `json:"model"`
	ContactPolicy string      `json:"contact_policy"`
	InceptionTs   interface{} `json:"inception_ts"`
	RegisteredTs  interface{} `json:"registered_ts"`
	LastActiveTs  interface{} `json:"last_active_ts"`
}

// MessageFrontmatter mirrors the `---json\n...\n---\n` block of a
// messages/<YYYY>/<MM>/*.md archive file. Unknown fields are ignored.
type MessageFrontmatter struct {
	ID          interface{} `json:"id"`
	From        string      `json:"from"`
	Sender      string      `json:"sender"`
	FromAgent   string      `json:"from_agent"`
	To          interface{} `json:"to"`
	Cc          interface{} `json:"cc"`
	Bcc         interface{} `json:"bcc"`
	ThreadID    interface{} `json:"thread_id"`
	Subject     string      `json:"subject"`
	Importance  string      `json:"importance"`
	AckRequired bool        `json:"ack_required"`
	CreatedTs   interface{} `json:"created_ts"`
	Created     interface{} `json:"created"`
	Attachments interface{} `json:"attachments"`
}

// senderName resolves the first populated sender field, preferring `from`.
func (m MessageFrontmatter) senderName() string {
	if m.From != "" {
		return m.From
	}
	if m.Sender != "" {
		return m.Sender
	}
	if m.FromAgent != "" {
		return m.FromAgent
	}
	return "unknown"
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
