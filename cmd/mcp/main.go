package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"auditor/internal/pkg/solana"

	"github.com/PuerkitoBio/goquery"
)

// Request represents a minimal JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a minimal JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC error payload.
type ResponseError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      map[string]interface{} `json:"serverInfo"`
}

// Tool describes an MCP tool.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ContentItem represents a piece of tool output.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type ToolCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// MCPServer forwards tool calls over stdio to a running auditor API.
type MCPServer struct {
	baseURL string
	wallet  string
	client  *http.Client
	in      *bufio.Reader
	out     *bufio.Writer
	outMu   sync.Mutex
	tools   []Tool
}

func main() {
	// stdout carries the protocol, logs go to stderr
	log.SetOutput(os.Stderr)

	server := &MCPServer{
		baseURL: strings.TrimRight(getEnv("AUDITOR_BASE_URL", "http://localhost:5000"), "/"),
		wallet:  os.Getenv("AUDITOR_WALLET"),
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		in:  bufio.NewReader(os.Stdin),
		out: bufio.NewWriter(os.Stdout),
		tools: []Tool{
			{
				Name:        "scan_token",
				Description: "Audit a Solana token: name, market cap, links, contract mutability, a 0-10 degen score and a verdict.",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"token_address": map[string]interface{}{
							"type":        "string",
							"description": "Mint address of the token to scan.",
						},
						"user_wallet": map[string]interface{}{
							"type":        "string",
							"description": "Wallet the scan is charged to (defaults to AUDITOR_WALLET).",
						},
					},
					"required": []string{"token_address"},
				},
			},
		},
	}

	log.Println("MCP shim starting...")
	if err := server.Serve(); err != nil {
		log.Fatalf("mcp server failed: %v", err)
	}
}

// Serve starts the read/dispatch/write loop.
func (s *MCPServer) Serve() error {
	for {
		req, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if err != errEmptyLine {
				log.Printf("failed to read/parse message: %v", err)
			}
			continue
		}

		go func(r Request) {
			resp := s.handleRequest(r)
			// notifications get no answer
			if resp == nil {
				return
			}
			if err := s.writeMessage(*resp); err != nil {
				log.Printf("failed to write message: %v", err)
			}
		}(req)
	}
}

func (s *MCPServer) handleRequest(req Request) *Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, InitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities: map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			ServerInfo: map[string]interface{}{
				"name":    "degen-auditor",
				"version": "1.0.0",
			},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return s.reply(req, ListToolsResult{Tools: s.tools})
	case "tools/call":
		return s.handleToolCall(req)
	case "ping":
		return s.reply(req, map[string]interface{}{})
	case "shutdown":
		go func() {
			time.Sleep(500 * time.Millisecond)
			os.Exit(0)
		}()
		return s.reply(req, nil)
	case "notifications/exit":
		os.Exit(0)
		return nil
	}

	return s.error(req, -32601, fmt.Sprintf("method not found: %s", req.Method), nil)
}

func (s *MCPServer) handleToolCall(req Request) *Response {
	var params ToolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.error(req, -32602, "invalid params", err.Error())
		}
	}

	switch params.Name {
	case "scan_token":
		result, rpcErr := s.callScanToken(params.Arguments)
		if rpcErr != nil {
			return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		}
		return s.reply(req, result)
	default:
		return s.error(req, -32601, fmt.Sprintf("tool not found: %s", params.Name), nil)
	}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func (s *MCPServer) callScanToken(args map[string]interface{}) (*ToolCallResult, *ResponseError) {
	token := stringArg(args, "token_address")
	if err := solana.ValidateAddress(token); err != nil {
		return nil, &ResponseError{Code: -32602, Message: "token_address must be a Solana mint address", Data: err.Error()}
	}

	wallet := stringArg(args, "user_wallet")
	if wallet == "" {
		wallet = s.wallet
	}
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, &ResponseError{Code: -32602, Message: "user_wallet (or AUDITOR_WALLET) must be a Solana address", Data: err.Error()}
	}

	payload, err := json.Marshal(map[string]string{"token_address": token, "user_wallet": wallet})
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "failed to encode request", Data: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "failed to build request", Data: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("Scanning %s for %s", token, wallet)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "request failed", Data: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseError{Code: -32000, Message: "failed to read response", Data: err.Error()}
	}

	var out struct {
		Report string `json:"report"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ResponseError{Code: -32000, Message: fmt.Sprintf("upstream error: %s", resp.Status), Data: string(body)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = reportText(out.Report)
		}
		return &ToolCallResult{Content: []ContentItem{{Type: "text", Text: msg}}, IsError: true}, nil
	}

	return &ToolCallResult{
		Content: []ContentItem{{Type: "text", Text: reportText(out.Report)}},
	}, nil
}

// reportText flattens the report card into one line per fact.
func reportText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	var lines []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, s)
		}
	}

	card := doc.Find(".report-container")
	add(card.Find("h2").First().Text())
	card.Find("li").Each(func(_ int, li *goquery.Selection) {
		label := strings.TrimSpace(li.Find("strong").Text())
		value := li.Find(".value")
		text := strings.TrimSpace(value.Text())
		if href, ok := value.Find("a").Attr("href"); ok {
			text = href
		}
		add(label + " " + text)
	})
	if score, ok := card.Attr("data-degen-score"); ok {
		add("Degen score: " + score + "/10")
	}
	add(card.Find(".verdict h3").Text())
	add(card.Find(".verdict p").Text())

	if len(lines) == 0 {
		add(doc.Text())
	}
	return strings.Join(lines, "\n")
}

func (s *MCPServer) reply(req Request, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func (s *MCPServer) error(req Request, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error: &ResponseError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

var errEmptyLine = fmt.Errorf("empty line")

// readMessage reads one newline delimited JSON message.
func (s *MCPServer) readMessage() (Request, error) {
	line, err := s.in.ReadBytes('\n')
	if err != nil {
		return Request{}, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Request{}, errEmptyLine
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("json parse error: %w", err)
	}
	return req, nil
}

func (s *MCPServer) writeMessage(resp Response) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := s.out.Write(payload); err != nil {
		return err
	}
	if _, err := s.out.Write([]byte("\n")); err != nil {
		return err
	}
	return s.out.Flush()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
