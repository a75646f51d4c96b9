package cgi

import (
	"strconv"
	"strings"

	"github.com/caffeineduck/wagi"
)

// headerKind classifies a CGI header line once, so each line is matched
// against the recognized names exactly one time.
type headerKind int

const (
	kindGeneric headerKind = iota
	kindLocation
	kindContentType
	kindStatus
)

func classify(name string) headerKind {
	switch {
	case strings.EqualFold(name, "location"):
		return kindLocation
	case strings.EqualFold(name, "content-type"):
		return kindContentType
	case strings.EqualFold(name, "status"):
		return kindStatus
	}
	return kindGeneric
}

// ParseResponse reconstructs an outward response from a module's buffered
// standard output: a block of CRLF- or LF-delimited header lines, a blank
// line, then the body. Leading NUL padding is trimmed and header lines
// without a colon are skipped. The output must name at least a
// Content-Type or a Location; otherwise the module has not said how its
// response is to be interpreted, and parsing fails with a
// wagi.ProtocolError.
func ParseResponse(stdout []byte) (wagi.Response, error) {
	resp := wagi.Response{Status: 200}

	text := strings.TrimLeft(string(stdout), "\x00")
	lines := strings.Split(text, "\n")

	split := len(lines)
	for i, line := range lines {
		if line == "" || line == "\r" {
			split = i
			break
		}
	}

	sufficient := false
	for _, line := range lines[:split] {
		line = strings.TrimRight(line, "\r")
		line = strings.Trim(line, "\x00")
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		switch classify(name) {
		case kindLocation:
			for _, v := range splitValues(value) {
				resp.Header.Add("Location", v)
			}
			sufficient = true
		case kindContentType:
			resp.Header.Set("Content-Type", value)
			sufficient = true
		case kindStatus:
			if code, reason, ok := parseStatus(value); ok {
				resp.Status = code
				resp.Reason = reason
			}
		default:
			for _, v := range splitValues(value) {
				resp.Header.Add(name, v)
			}
		}
	}

	if !sufficient {
		return wagi.Response{}, &wagi.ProtocolError{
			Reason: "neither Content-Type nor Location header present",
		}
	}

	if split < len(lines) {
		if body := strings.Join(lines[split+1:], "\n"); body != "" {
			resp.Body = []byte(body)
		}
	}
	return resp, nil
}

// parseStatus reads "code" or "code reason" from a status header value.
func parseStatus(value string) (int, string, bool) {
	codeText, reason, _ := strings.Cut(value, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return 0, "", false
	}
	return code, strings.TrimSpace(reason), true
}

func splitValues(value string) []string {
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
