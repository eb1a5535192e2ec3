package facta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/emprestedigital/creditbot/internal/token"
)

// Scope is the token cache scope for the Facta integration.
const Scope = "FACTA"

// advertisedTokenTTL is the validity Facta documents for /gera-token
// responses. The cache applies its own safety margin on top.
const advertisedTokenTTL = 3500 * time.Second

// browserUserAgent is required by the upstream's WAF; requests with the Go
// default agent are rejected.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config carries the credentials and endpoint of the Facta webservice.
type Config struct {
	BaseURL  string
	User     string
	Password string
}

// Client talks to the Facta FGTS webservice. Bearer credentials come from
// the shared token Manager, so renewal is single-flight across workers.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *token.Manager
	logger *slog.Logger
}

// NewClient creates a Client. If logger is nil, slog.Default() is used.
func NewClient(cfg Config, tokens *token.Manager, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		tokens: tokens,
		logger: logger,
	}
}

// bearer returns a valid bearer credential, renewing through the lease
// manager when the cache is cold.
func (c *Client) bearer(ctx context.Context) (string, error) {
	return c.tokens.GetValidToken(ctx, Scope, c.renewToken)
}

// renewToken performs one /gera-token call with Basic authentication.
func (c *Client) renewToken(ctx context.Context) (string, time.Duration, error) {
	if c.cfg.User == "" || c.cfg.Password == "" {
		return "", 0, fmt.Errorf("facta: user or password not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/gera-token", nil)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("facta: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, fmt.Errorf("facta: token request: HTTP %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("facta: token decode: %w", err)
	}
	if payload.Token == "" {
		return "", 0, fmt.Errorf("facta: token endpoint returned 200 without a token field")
	}

	return payload.Token, advertisedTokenTTL, nil
}

// CheckBalance queries /fgts/saldo for cpf. Transport and auth failures are
// folded into the response's TransportErr so the Translator can classify
// them; the method itself never fails the conversation turn.
func (c *Client) CheckBalance(ctx context.Context, cpf string) BalanceResponse {
	bearer, err := c.bearer(ctx)
	if err != nil {
		return BalanceResponse{TransportErr: err}
	}

	endpoint := c.cfg.BaseURL + "/fgts/saldo?" + url.Values{
		"cpf":   {cpf},
		"banco": {"facta"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return BalanceResponse{TransportErr: err}
	}
	c.setAuth(req, bearer)

	c.logger.InfoContext(ctx, "facta_balance_request", slog.String("cpf", maskCPF(cpf)))

	resp, err := c.http.Do(req)
	if err != nil {
		return BalanceResponse{TransportErr: fmt.Errorf("facta: balance request: %w", err)}
	}
	defer resp.Body.Close()

	var out BalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return BalanceResponse{TransportErr: fmt.Errorf("facta: balance decode: %w", err)}
	}
	return out
}

// SimulationRequest is the body of a /fgts/calculo call.
type SimulationRequest struct {
	CPF          string           `json:"cpf"`
	Rate         float64          `json:"taxa"`
	Table        int              `json:"tabela"`
	Installments []map[string]any `json:"parcelas"`
}

// SimulationResponse is the raw shape of a /fgts/calculo reply. Amount
// fields arrive either as numbers or BRL-formatted strings; use ParseAmount.
type SimulationResponse struct {
	Permitted    string `json:"permitido"`
	NetAmount    any    `json:"valor_liquido"`
	Rate         any    `json:"taxa"`
	Table        any    `json:"tabela"`
	SimulationID any    `json:"simulacao_fgts"`
	Msg          string `json:"msg"`
}

// Approved reports whether the simulation was accepted by the upstream.
func (r SimulationResponse) Approved() bool {
	return r.Permitted == "SIM"
}

// Simulate posts a credit simulation for cpf with the given request.
func (c *Client) Simulate(ctx context.Context, simReq SimulationRequest) (SimulationResponse, error) {
	bearer, err := c.bearer(ctx)
	if err != nil {
		return SimulationResponse{}, err
	}

	body, err := json.Marshal(simReq)
	if err != nil {
		return SimulationResponse{}, fmt.Errorf("facta: simulation encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/fgts/calculo", bytes.NewReader(body))
	if err != nil {
		return SimulationResponse{}, err
	}
	c.setAuth(req, bearer)

	c.logger.InfoContext(ctx, "facta_simulation_request",
		slog.String("cpf", maskCPF(simReq.CPF)),
		slog.Int("table", simReq.Table),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return SimulationResponse{}, fmt.Errorf("facta: simulation request: %w", err)
	}
	defer resp.Body.Close()

	var out SimulationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SimulationResponse{}, fmt.Errorf("facta: simulation decode: %w", err)
	}
	return out, nil
}

func (c *Client) setAuth(req *http.Request, bearer string) {
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)
}

// maskCPF keeps only the first three digits in log output.
func maskCPF(cpf string) string {
	if len(cpf) <= 3 {
		return cpf
	}
	return cpf[:3] + "********"
}
