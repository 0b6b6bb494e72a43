package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client encapsula chamadas à API v4 do Kommo.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Config descreve credenciais essenciais para o cliente.
type Config struct {
	BaseURL     string
	AccessToken string
}

// New cria um novo cliente autenticado por token de acesso.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("kommo: base url obrigatória")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("kommo: access token obrigatório")
	}

	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
	}, nil
}

// CustomFieldValue é um valor de campo customizado de lead ou contato.
type CustomFieldValue struct {
	FieldID int64 `json:"field_id"`
	Values  []struct {
		Value any `json:"value"`
	} `json:"values"`
}

// Lead é a entidade de pipeline comercial do Kommo.
type Lead struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	Price             float64            `json:"price"`
	StatusID          int64              `json:"status_id"`
	PipelineID        int64              `json:"pipeline_id"`
	CustomFieldValues []CustomFieldValue `json:"custom_fields_values"`
}

// Contact é um contato do CRM.
type Contact struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	CustomFieldValues []CustomFieldValue `json:"custom_fields_values"`
}

// FieldValue monta um CustomFieldValue de valor único, que é o formato
// aceito nos PATCHes da API v4.
func FieldValue(fieldID int64, value any) CustomFieldValue {
	fv := CustomFieldValue{FieldID: fieldID}
	fv.Values = append(fv.Values, struct {
		Value any `json:"value"`
	}{Value: value})
	return fv
}

// LeadUpdate carrega alterações parciais de um lead.
type LeadUpdate struct {
	Name              string             `json:"name,omitempty"`
	Price             float64            `json:"price,omitempty"`
	StatusID          int64              `json:"status_id,omitempty"`
	CustomFieldValues []CustomFieldValue `json:"custom_fields_values,omitempty"`
}

// UpdateLead aplica alterações em um lead existente.
func (c *Client) UpdateLead(ctx context.Context, leadID int64, update LeadUpdate) error {
	endpoint := fmt.Sprintf("%s/api/v4/leads/%d", c.baseURL, leadID)
	if err := c.send(ctx, http.MethodPatch, endpoint, update, nil); err != nil {
		return fmt.Errorf("kommo: atualizar lead %d: %w", leadID, err)
	}
	return nil
}

// CreateContact cria um contato e devolve o identificador gerado.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (int64, error) {
	endpoint := c.baseURL + "/api/v4/contacts"

	var resp struct {
		Embedded struct {
			Contacts []Contact `json:"contacts"`
		} `json:"_embedded"`
	}
	if err := c.send(ctx, http.MethodPost, endpoint, []Contact{contact}, &resp); err != nil {
		return 0, fmt.Errorf("kommo: criar contato: %w", err)
	}
	if len(resp.Embedded.Contacts) == 0 {
		return 0, errors.New("kommo: resposta sem contato criado")
	}
	return resp.Embedded.Contacts[0].ID, nil
}

// SearchContactByPhone busca um contato pelo telefone. Devolve nil quando
// nenhum contato corresponde.
func (c *Client) SearchContactByPhone(ctx context.Context, phone string) (*Contact, error) {
	endpoint := c.baseURL + "/api/v4/contacts?query=" + url.QueryEscape(phone)

	var resp struct {
		Embedded struct {
			Contacts []Contact `json:"contacts"`
		} `json:"_embedded"`
	}
	if err := c.send(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("kommo: buscar contato: %w", err)
	}
	if len(resp.Embedded.Contacts) == 0 {
		return nil, nil
	}
	return &resp.Embedded.Contacts[0], nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body, v any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
