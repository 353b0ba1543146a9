// Package httpclient implementa el cliente HTTP resiliente usado por todos los clientes de marketplaces:
// timeout por petición, reintentos con backoff exponencial y jitter, y clasificación de fallos.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = time.Second
	maxBodyBytes      = 32 << 20
)

// Config parámetros del cliente. MaxRetries = 0 desactiva los reintentos.
type Config struct {
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	// RequestsPerSecond limita la tasa de salida (incluye reintentos). 0 = sin límite.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zerolog.Logger
	// Rand fuente de jitter en [0,1). nil = math/rand.
	Rand func() float64
}

// Client cliente resiliente con URL base fija.
type Client struct {
	baseURL        string
	defaultHeaders map[string]string
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
	http           *http.Client
	limiter        *rate.Limiter
	log            zerolog.Logger
	rand           func() float64
}

// New construye el cliente aplicando valores por defecto (timeout 30 s, delay base 1 s).
func New(cfg Config) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		defaultHeaders: make(map[string]string, len(cfg.DefaultHeaders)),
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		http:           cfg.HTTPClient,
		rand:           cfg.Rand,
		log:            zerolog.Nop(),
	}
	for k, v := range cfg.DefaultHeaders {
		c.defaultHeaders[k] = v
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if c.http == nil {
		// Sin timeout global: el límite se aplica por intento con context.WithTimeout.
		c.http = &http.Client{}
	}
	if c.rand == nil {
		c.rand = rand.Float64
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "httpclient").Str("base_url", c.baseURL).Logger()
	}
	return c
}

// Request petición a ejecutar. Path es relativo a la URL base.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    any // se serializa como JSON; nil = sin cuerpo
}

// Get atajo para peticiones GET.
func (c *Client) Get(ctx context.Context, path string, query, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Headers: headers})
}

// Post atajo para peticiones POST con cuerpo JSON.
func (c *Client) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers})
}

// Do ejecuta la petición con reintentos. Solo se reintentan fallos transitorios
// (timeout, 429, 500, 503) hasta MaxRetries veces; el resto se propaga de inmediato.
// El llamador es responsable de que la operación sea idempotente.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: serializar cuerpo: %w", err)
		}
	}

	headers := make(map[string]string, len(c.defaultHeaders)+len(req.Headers))
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("httpclient: rate limit: %w", err)
			}
		}

		resp, err := c.execute(ctx, method, target, headers, payload)
		if err == nil {
			return resp, nil
		}
		if !IsTransient(err) || attempt >= c.maxRetries {
			if attempt > 0 {
				return nil, fmt.Errorf("httpclient: %s %s tras %d intentos: %w", method, req.Path, attempt+1, err)
			}
			return nil, err
		}

		delay := BackoffDelay(attempt+1, c.retryDelay, c.rand)
		c.log.Warn().
			Err(err).
			Str("method", method).
			Str("path", req.Path).
			Int("retry", attempt+1).
			Int("max_retries", c.maxRetries).
			Dur("delay", delay).
			Msg("fallo transitorio, reintentando")

		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("httpclient: espera de reintento cancelada: %w", err)
		}
	}
}

// execute realiza un único intento con su propio timeout.
func (c *Client) execute(ctx context.Context, method, target string, headers map[string]string, payload []byte) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: crear request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, method, target, err)
	}

	out := &Response{
		Status:      resp.StatusCode,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: snippet(raw)}
	}
	if out.IsJSON() && len(bytes.TrimSpace(raw)) > 0 && !json.Valid(raw) {
		return nil, &DecodeError{URL: target, ContentType: out.ContentType}
	}
	return out, nil
}

func (c *Client) classifyTransportError(parent, attemptCtx context.Context, method, target string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("httpclient: %s %s: %w", method, target, parent.Err())
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("httpclient: %s %s tras %s: %w", method, target, c.timeout, ErrTimeout)
	}
	return fmt.Errorf("httpclient: %s %s: %w", method, target, err)
}

func (c *Client) buildURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("httpclient: url inválida: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// BackoffDelay espera antes del reintento n (1-indexado): base*2^(n-1) más un jitter
// uniforme en [0, 0.1*delay).
func BackoffDelay(n int, base time.Duration, rnd func() float64) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := base << (n - 1)
	if rnd == nil {
		rnd = rand.Float64
	}
	jitter := time.Duration(rnd() * 0.1 * float64(delay))
	return delay + jitter
}

// sleep espera d sin bloquear otras goroutines; se interrumpe si ctx se cancela.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Response respuesta exitosa (2xx).
type Response struct {
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte
}

// IsJSON indica si el content-type declara un cuerpo estructurado.
func (r *Response) IsJSON() bool {
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(r.ContentType), "json")
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// Decode deserializa el cuerpo JSON en v. Un cuerpo vacío deja v sin cambios.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("httpclient: deserializar respuesta: %w", err)
	}
	return nil
}

// Text cuerpo crudo como texto.
func (r *Response) Text() string { return string(r.Body) }

func snippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
