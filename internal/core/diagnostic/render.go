package diagnostic

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/harrier-dev/harrier/token"
)

// Format selects an output renderer.
type Format int

const (
	FormatConcise Format = iota
	FormatGrouped
	FormatJSON
	FormatSARIF
	FormatJUnit
	FormatGitLab
)

// ParseFormat converts a --output-format value.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "concise", "":
		return FormatConcise, true
	case "grouped":
		return FormatGrouped, true
	case "json":
		return FormatJSON, true
	case "sarif":
		return FormatSARIF, true
	case "junit":
		return FormatJUnit, true
	case "gitlab":
		return FormatGitLab, true
	}
	return 0, false
}

// Render writes diags to w in the chosen format. Line and column
// numbers are counted in enc units. diags must already be finalized
// (sorted, de-duplicated).
func Render(w io.Writer, format Format, diags []Diagnostic, enc token.Encoding) error {
	switch format {
	case FormatConcise:
		return renderConcise(w, diags, enc, false)
	case FormatGrouped:
		return renderGrouped(w, diags, enc)
	case FormatJSON:
		return renderJSON(w, diags, enc)
	case FormatSARIF:
		return renderSARIF(w, diags, enc)
	case FormatJUnit:
		return renderJUnit(w, diags, enc)
	case FormatGitLab:
		return renderGitLab(w, diags, enc)
	}
	return fmt.Errorf("unknown output format %d", int(format))
}

func positionIn(p token.Pos, enc token.Encoding) token.Position {
	if f := p.File(); f != nil {
		return f.PositionIn(p, enc)
	}
	return token.Position{}
}

func renderConcise(w io.Writer, diags []Diagnostic, enc token.Encoding, omitExcerpt bool) error {
	for _, d := range diags {
		pos := positionIn(d.Range.Start, enc)
		fmt.Fprintf(w, "%s:%d:%d: %s [%s] %s\n",
			pos.Filename, pos.Line, pos.Column, d.Severity, d.Code, d.Message)
		if omitExcerpt {
			continue
		}
		if line, col := excerptLine(d.Range.Start); line != "" {
			fmt.Fprintf(w, "    %s\n", line)
			fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", col))
		}
	}
	return nil
}

func renderGrouped(w io.Writer, diags []Diagnostic, enc token.Encoding) error {
	var current string
	first := true
	for _, d := range diags {
		pos := positionIn(d.Range.Start, enc)
		if pos.Filename != current {
			if !first {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s:\n", pos.Filename)
			current = pos.Filename
			first = false
		}
		fmt.Fprintf(w, "  %d:%d %s [%s] %s\n", pos.Line, pos.Column, d.Severity, d.Code, d.Message)
	}
	return nil
}

// The JSON record schema: one object per diagnostic with code,
// message, severity, file, range, optional fix and secondary spans.
type jsonRecord struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Severity  string          `json:"severity"`
	File      string          `json:"file"`
	Range     jsonRange       `json:"range"`
	Fix       *jsonFix        `json:"fix,omitempty"`
	Secondary []jsonSecondary `json:"secondary,omitempty"`
}

type jsonPoint struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type jsonRange struct {
	Start jsonPoint `json:"start"`
	End   jsonPoint `json:"end"`
}

type jsonFix struct {
	Applicability string     `json:"applicability"`
	Edits         []jsonEdit `json:"edits"`
}

type jsonEdit struct {
	Range   jsonRange `json:"range"`
	NewText string    `json:"new_text"`
}

type jsonSecondary struct {
	Range jsonRange `json:"range"`
	Label string    `json:"label,omitempty"`
}

func toJSONRange(r token.Range, enc token.Encoding) jsonRange {
	start := positionIn(r.Start, enc)
	end := positionIn(r.End, enc)
	return jsonRange{
		Start: jsonPoint{Line: start.Line, Col: start.Column},
		End:   jsonPoint{Line: end.Line, Col: end.Column},
	}
}

func toJSONRecord(d Diagnostic, enc token.Encoding) jsonRecord {
	rec := jsonRecord{
		Code:     d.Code,
		Message:  d.Message,
		Severity: d.Severity.String(),
		File:     d.Range.Start.Filename(),
		Range:    toJSONRange(d.Range, enc),
	}
	if d.Fix != nil {
		fix := &jsonFix{Applicability: d.Fix.Applicability.String()}
		for _, e := range d.Fix.Edits {
			fix.Edits = append(fix.Edits, jsonEdit{Range: toJSONRange(e.Range, enc), NewText: e.NewText})
		}
		rec.Fix = fix
	}
	for _, s := range d.Secondary {
		rec.Secondary = append(rec.Secondary, jsonSecondary{Range: toJSONRange(s.Range, enc), Label: s.Label})
	}
	return rec
}

func renderJSON(w io.Writer, diags []Diagnostic, enc token.Encoding) error {
	records := make([]jsonRecord, 0, len(diags))
	for _, d := range diags {
		records = append(records, toJSONRecord(d, enc))
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(records)
}

// SARIF 2.1.0, the minimum viable subset CI systems consume.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID string `json:"id"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

func sarifLevel(s Severity) string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func renderSARIF(w io.Writer, diags []Diagnostic, enc token.Encoding) error {
	seen := map[string]bool{}
	var rules []sarifRule
	results := make([]sarifResult, 0, len(diags))
	for _, d := range diags {
		if !seen[d.Code] {
			seen[d.Code] = true
			rules = append(rules, sarifRule{ID: d.Code})
		}
		start := positionIn(d.Range.Start, enc)
		end := positionIn(d.Range.End, enc)
		results = append(results, sarifResult{
			RuleID:  d.Code,
			Level:   sarifLevel(d.Severity),
			Message: sarifMessage{Text: d.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysical{
					ArtifactLocation: sarifArtifact{URI: start.Filename},
					Region: sarifRegion{
						StartLine:   start.Line,
						StartColumn: start.Column,
						EndLine:     end.Line,
						EndColumn:   end.Column,
					},
				},
			}},
		})
	}
	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "harrier", Rules: rules}},
			Results: results,
		}},
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(log)
}

// JUnit XML: one testsuite per file, one failing testcase per
// diagnostic.

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Failures int         `xml:"failures,attr"`
	Tests    int         `xml:"tests,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

func renderJUnit(w io.Writer, diags []Diagnostic, enc token.Encoding) error {
	byFile := map[string][]Diagnostic{}
	var order []string
	for _, d := range diags {
		name := d.Range.Start.Filename()
		if _, ok := byFile[name]; !ok {
			order = append(order, name)
		}
		byFile[name] = append(byFile[name], d)
	}
	var suites junitSuites
	for _, name := range order {
		ds := byFile[name]
		suite := junitSuite{Name: name, Failures: len(ds), Tests: len(ds)}
		for _, d := range ds {
			pos := positionIn(d.Range.Start, enc)
			suite.Cases = append(suite.Cases, junitCase{
				Name: fmt.Sprintf("%s at %d:%d", d.Code, pos.Line, pos.Column),
				Failure: &junitFailure{
					Message: d.Message,
					Body:    fmt.Sprintf("%s:%d:%d: %s", pos.Filename, pos.Line, pos.Column, d.Message),
				},
			})
		}
		suites.Suites = append(suites.Suites, suite)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	e := xml.NewEncoder(w)
	e.Indent("", "  ")
	if err := e.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// GitLab code-quality JSON.

type gitlabRecord struct {
	Description string         `json:"description"`
	CheckName   string         `json:"check_name"`
	Fingerprint string         `json:"fingerprint"`
	Severity    string         `json:"severity"`
	Location    gitlabLocation `json:"location"`
}

type gitlabLocation struct {
	Path  string      `json:"path"`
	Lines gitlabLines `json:"lines"`
}

type gitlabLines struct {
	Begin int `json:"begin"`
}

func gitlabSeverity(s Severity) string {
	switch s {
	case SeverityError:
		return "major"
	case SeverityWarning:
		return "minor"
	default:
		return "info"
	}
}

func renderGitLab(w io.Writer, diags []Diagnostic, enc token.Encoding) error {
	records := make([]gitlabRecord, 0, len(diags))
	for _, d := range diags {
		pos := positionIn(d.Range.Start, enc)
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d:%d:%s", d.Code, pos.Filename, pos.Line, pos.Column, d.Message)))
		records = append(records, gitlabRecord{
			Description: d.Message,
			CheckName:   d.Code,
			Fingerprint: hex.EncodeToString(sum[:8]),
			Severity:    gitlabSeverity(d.Severity),
			Location: gitlabLocation{
				Path:  pos.Filename,
				Lines: gitlabLines{Begin: pos.Line},
			},
		})
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(records)
}
