// Package rtorrent speaks rTorrent's XML-RPC dialect (spec.md §4.2). No
// library in the example corpus implements XML-RPC (checked go.mod and
// source across every retrieved repo) so the wire codec in this file is
// hand-written directly on encoding/xml and net/http; see DESIGN.md for
// the stdlib-exception justification.
package rtorrent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// value is a single XML-RPC <value> element, decoded loosely: exactly one
// of the typed pointers is set, or Chars holds an untyped (implicit
// string) payload.
type value struct {
	XMLName xml.Name    `xml:"value"`
	Str     *string     `xml:"string"`
	Int4    *string     `xml:"i4"`
	Int8    *string     `xml:"i8"`
	Bool    *string     `xml:"boolean"`
	Double  *string     `xml:"double"`
	B64     *string     `xml:"base64"`
	Array   *arrayValue `xml:"array"`
	Struct  *structValue `xml:"struct"`
	Chars   string      `xml:",chardata"`
}

type arrayValue struct {
	Data []value `xml:"data>value"`
}

type structValue struct {
	Members []member `xml:"member"`
}

type member struct {
	Name  string `xml:"name"`
	Value value  `xml:"value"`
}

// native converts a decoded value into a plain Go value: string, int64,
// bool, float64, []byte, []any or map[string]any.
func (v value) native() any {
	switch {
	case v.Str != nil:
		return *v.Str
	case v.Int4 != nil:
		n, _ := strconv.ParseInt(strings.TrimSpace(*v.Int4), 10, 64)
		return n
	case v.Int8 != nil:
		n, _ := strconv.ParseInt(strings.TrimSpace(*v.Int8), 10, 64)
		return n
	case v.Bool != nil:
		return strings.TrimSpace(*v.Bool) == "1"
	case v.Double != nil:
		f, _ := strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
		return f
	case v.B64 != nil:
		b, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(*v.B64))
		return b
	case v.Array != nil:
		out := make([]any, len(v.Array.Data))
		for i, e := range v.Array.Data {
			out[i] = e.native()
		}
		return out
	case v.Struct != nil:
		out := make(map[string]any, len(v.Struct.Members))
		for _, m := range v.Struct.Members {
			out[m.Name] = m.Value.native()
		}
		return out
	default:
		return v.Chars
	}
}

type methodResponse struct {
	Params *struct {
		Param []struct {
			Value value `xml:"value"`
		} `xml:"param"`
	} `xml:"params"`
	Fault *struct {
		Value value `xml:"value"`
	} `xml:"fault"`
}

// Fault is an XML-RPC <fault> response, surfaced as a Go error.
type Fault struct {
	Code    int64
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("rtorrent fault %d: %s", f.Code, f.Message)
}

// stringParamXML/intParamXML/base64ParamXML build the outgoing <param>
// XML by hand; rTorrent only ever needs these three shapes from a gateway.
func stringParamXML(s string) string {
	return "<value><string>" + escapeXML(s) + "</string></value>"
}

func intParamXML(n int64) string {
	return "<value><i8>" + strconv.FormatInt(n, 10) + "</i8></value>"
}

func base64ParamXML(b []byte) string {
	return "<value><base64>" + base64.StdEncoding.EncodeToString(b) + "</base64></value>"
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// rpcCaller is a minimal synchronous XML-RPC caller bound to one
// rTorrent RPC endpoint.
type rpcCaller struct {
	httpClient *http.Client
	url        string
	username   string
	password   string
}

// newRPCCaller builds an XML-RPC caller against url (the full RPC
// endpoint, e.g. "http://host:port/RPC2").
func newRPCCaller(httpClient *http.Client, url, username, password string) *rpcCaller {
	return &rpcCaller{httpClient: httpClient, url: url, username: username, password: password}
}

// Call invokes methodName with raw pre-built <value> XML fragments as
// params and returns the decoded response values.
func (c *rpcCaller) Call(ctx context.Context, methodName string, paramsXML ...string) ([]any, error) {
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0"?><methodCall><methodName>`)
	body.WriteString(escapeXML(methodName))
	body.WriteString(`</methodName><params>`)
	for _, p := range paramsXML {
		body.WriteString("<param>")
		body.WriteString(p)
		body.WriteString("</param>")
	}
	body.WriteString(`</params></methodCall>`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("rtorrent: http status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded methodResponse
	if err := xml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("rtorrent: decode response: %w", err)
	}
	if decoded.Fault != nil {
		f := decoded.Fault.Value.native()
		fm, _ := f.(map[string]any)
		msg, _ := fm["faultString"].(string)
		code, _ := fm["faultCode"].(int64)
		return nil, &Fault{Code: code, Message: msg}
	}
	if decoded.Params == nil {
		return nil, nil
	}
	out := make([]any, len(decoded.Params.Param))
	for i, p := range decoded.Params.Param {
		out[i] = p.Value.native()
	}
	return out, nil
}
