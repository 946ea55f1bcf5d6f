package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rpcwire/rpcwire/internal/cli/errors"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
)

type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatRaw  OutputFormat = "raw"
)

// maxCell bounds result cells in batch tables.
const maxCell = 60

type Formatter struct {
	out    io.Writer
	format OutputFormat
	color  bool
}

func NewFormatter(out io.Writer, format OutputFormat, useColor bool) *Formatter {
	return &Formatter{
		out:    out,
		format: format,
		color:  useColor,
	}
}

func (f *Formatter) Format() OutputFormat {
	return f.format
}

func (f *Formatter) FormatResult(result *CallResult) string {
	switch f.format {
	case FormatJSON:
		s, _ := result.JSON()
		return s
	case FormatRaw:
		return result.Compact()
	}

	if result.IsEmpty() {
		if f.color {
			return color.HiBlackString("(no result)")
		}
		return "(no result)"
	}
	return result.Text()
}

func (f *Formatter) FormatError(err errors.ClassifiedError) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(err, "", "  ")
		return string(data)
	}

	var msg string
	if f.color {
		msg = color.RedString("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\n" + color.YellowString("Hint: %s", err.Hint)
		}
	} else {
		msg = fmt.Sprintf("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\nHint: " + err.Hint
		}
	}
	return msg
}

// BatchRow is one slot of a batch as shown to the user.
type BatchRow struct {
	Slot   int             `json:"slot"`
	Method string          `json:"method,omitempty"`
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result"`
}

// PrintBatch writes one row per slot. Skipped slots have no method.
func (f *Formatter) PrintBatch(rows []BatchRow) {
	if f.format != FormatText {
		for i := range rows {
			if len(rows[i].Result) == 0 {
				rows[i].Result = json.RawMessage("null")
			}
		}
		var data []byte
		if f.format == FormatRaw {
			data, _ = json.Marshal(rows)
		} else {
			data, _ = json.MarshalIndent(rows, "", "  ")
		}
		fmt.Fprintln(f.out, string(data))
		return
	}

	table := tablewriter.NewTable(f.out,
		tablewriter.WithHeader([]string{"#", "Method", "ID", "Result"}),
	)

	for _, r := range rows {
		method := r.Method
		if method == "" {
			method = "-"
		}
		table.Append([]string{strconv.Itoa(r.Slot), method, r.ID, cell(NewCallResult(r.Method, r.Result))})
	}

	table.Render()
}

// PrintProfiles writes the configured profiles, marking the default one.
func (f *Formatter) PrintProfiles(profiles []profile.Profile, defaultID string) {
	if f.format != FormatText {
		data, _ := json.MarshalIndent(redactProfiles(profiles), "", "  ")
		fmt.Fprintln(f.out, string(data))
		return
	}

	table := tablewriter.NewTable(f.out,
		tablewriter.WithHeader([]string{"", "ID", "URL", "Auth", "Token Store"}),
	)

	for _, p := range profiles {
		marker := ""
		if p.ID == defaultID {
			marker = "*"
		}
		store := p.TokenStore
		if store == "" {
			store = "memory"
		}
		table.Append([]string{marker, p.ID, p.URL, authMode(p), store})
	}

	table.Render()
}

func redactProfiles(profiles []profile.Profile) []profile.Profile {
	out := make([]profile.Profile, len(profiles))
	for i, p := range profiles {
		if p.Password != "" {
			p.Password = "REDACTED"
		}
		if p.Token != "" {
			p.Token = "REDACTED"
		}
		if p.OAuth != nil {
			oauth := *p.OAuth
			if oauth.ClientSecret != "" {
				oauth.ClientSecret = "REDACTED"
			}
			if oauth.RefreshToken != "" {
				oauth.RefreshToken = "REDACTED"
			}
			p.OAuth = &oauth
		}
		out[i] = p
	}
	return out
}

func authMode(p profile.Profile) string {
	var modes []string
	if p.User != "" {
		modes = append(modes, "basic")
	}
	if p.OAuth != nil {
		modes = append(modes, "oauth")
	}
	if p.TLS != nil {
		modes = append(modes, "mtls")
	}
	if len(modes) == 0 {
		return "none"
	}
	return strings.Join(modes, "+")
}

func cell(r *CallResult) string {
	if r.IsEmpty() {
		return ""
	}
	s := r.Compact()
	if len(s) > maxCell {
		s = s[:maxCell-3] + "..."
	}
	return s
}
