package trello

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

const defaultAPIBase = "https://api.trello.com/1"

// Client encapsula chamadas à API REST do Trello. A autenticação usa o par
// key+token estático passado como query string em cada requisição.
type Client struct {
	httpClient *http.Client
	apiKey     string
	token      string
	boardID    string
	baseURL    string
}

// Config descreve credenciais essenciais para o cliente.
type Config struct {
	APIKey  string
	Token   string
	BoardID string
	APIBase string
}

// New cria um novo cliente para o board configurado.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("trello: api key obrigatória")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("trello: token obrigatório")
	}
	if strings.TrimSpace(cfg.BoardID) == "" {
		return nil, errors.New("trello: board id obrigatório")
	}

	apiBase := strings.TrimSpace(cfg.APIBase)
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     cfg.APIKey,
		token:      cfg.Token,
		boardID:    cfg.BoardID,
		baseURL:    strings.TrimRight(apiBase, "/"),
	}, nil
}

// BoardID devolve o board configurado.
func (c *Client) BoardID() string {
	return c.boardID
}

// List é uma coluna do board.
type List struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Pos  float64 `json:"pos"`
}

// Label é uma etiqueta de card.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CustomFieldValue carrega o valor tipado de um custom field.
type CustomFieldValue struct {
	Text   string `json:"text,omitempty"`
	Date   string `json:"date,omitempty"`
	Number string `json:"number,omitempty"`
}

// CustomFieldItem é o valor de um custom field em um card específico.
type CustomFieldItem struct {
	ID            string            `json:"id"`
	IDCustomField string            `json:"idCustomField"`
	IDValue       string            `json:"idValue,omitempty"`
	Value         *CustomFieldValue `json:"value,omitempty"`
}

// CustomFieldOption é uma opção de custom field do tipo lista.
type CustomFieldOption struct {
	ID    string `json:"id"`
	Value struct {
		Text string `json:"text"`
	} `json:"value"`
}

// CustomField é a definição de um custom field no board.
type CustomField struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Options []CustomFieldOption `json:"options,omitempty"`
}

// Card é um card conforme devolvido pela API do board.
type Card struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Desc             string            `json:"desc"`
	IDList           string            `json:"idList"`
	URL              string            `json:"url"`
	DateLastActivity string            `json:"dateLastActivity"`
	Due              *string           `json:"due"`
	Labels           []Label           `json:"labels"`
	CustomFieldItems []CustomFieldItem `json:"customFieldItems,omitempty"`
}

// Webhook é uma assinatura de notificações registrada no Trello.
type Webhook struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IDModel     string `json:"idModel"`
	CallbackURL string `json:"callbackURL"`
	Active      bool   `json:"active"`
}

// ListLists devolve todas as listas do board.
func (c *Client) ListLists(ctx context.Context) ([]List, error) {
	var lists []List
	endpoint := c.endpoint(fmt.Sprintf("/boards/%s/lists", c.boardID), nil)
	if err := c.get(ctx, endpoint, &lists); err != nil {
		return nil, fmt.Errorf("trello: listar listas: %w", err)
	}
	return lists, nil
}

// ListCards devolve todos os cards do board, incluindo custom fields.
func (c *Client) ListCards(ctx context.Context) ([]Card, error) {
	var cards []Card
	endpoint := c.endpoint(fmt.Sprintf("/boards/%s/cards", c.boardID), url.Values{"customFieldItems": {"true"}})
	if err := c.get(ctx, endpoint, &cards); err != nil {
		return nil, fmt.Errorf("trello: listar cards: %w", err)
	}
	return cards, nil
}

// GetCard busca um único card, incluindo custom fields.
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	var card Card
	endpoint := c.endpoint("/cards/"+url.PathEscape(cardID), url.Values{"customFieldItems": {"true"}})
	if err := c.get(ctx, endpoint, &card); err != nil {
		return nil, fmt.Errorf("trello: buscar card %s: %w", cardID, err)
	}
	return &card, nil
}

// ListCustomFields devolve as definições de custom fields do board.
func (c *Client) ListCustomFields(ctx context.Context) ([]CustomField, error) {
	var fields []CustomField
	endpoint := c.endpoint(fmt.Sprintf("/boards/%s/customFields", c.boardID), nil)
	if err := c.get(ctx, endpoint, &fields); err != nil {
		return nil, fmt.Errorf("trello: listar custom fields: %w", err)
	}
	return fields, nil
}

// CardChanges descreve alterações parciais enviadas de volta ao board.
type CardChanges struct {
	Name        *string
	Description *string
	ListID      *string
}

// UpdateCard aplica alterações de nome, descrição ou lista em um card.
func (c *Client) UpdateCard(ctx context.Context, cardID string, changes CardChanges) error {
	body := map[string]any{}
	if changes.Name != nil {
		body["name"] = *changes.Name
	}
	if changes.Description != nil {
		body["desc"] = *changes.Description
	}
	if changes.ListID != nil {
		body["idList"] = *changes.ListID
	}
	if len(body) == 0 {
		return nil
	}

	endpoint := c.endpoint("/cards/"+url.PathEscape(cardID), nil)
	if err := c.send(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("trello: atualizar card %s: %w", cardID, err)
	}
	return nil
}

// MoveCard move o card para outra lista.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string) error {
	return c.UpdateCard(ctx, cardID, CardChanges{ListID: &listID})
}

// CreateCardInput descreve um novo card.
type CreateCardInput struct {
	Name        string
	Description string
	ListID      string
}

// CreateCard cria um card na lista indicada e devolve o registro criado.
func (c *Client) CreateCard(ctx context.Context, input CreateCardInput) (*Card, error) {
	if strings.TrimSpace(input.ListID) == "" {
		return nil, errors.New("trello: lista de destino obrigatória")
	}

	body := map[string]any{
		"name":   input.Name,
		"desc":   input.Description,
		"idList": input.ListID,
	}

	var card Card
	endpoint := c.endpoint("/cards", nil)
	if err := c.send(ctx, http.MethodPost, endpoint, body, &card); err != nil {
		return nil, fmt.Errorf("trello: criar card: %w", err)
	}
	return &card, nil
}

// DeleteCard remove o card do board.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	endpoint := c.endpoint("/cards/"+url.PathEscape(cardID), nil)
	if err := c.send(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("trello: remover card %s: %w", cardID, err)
	}
	return nil
}

// AddComment registra um comentário no card.
func (c *Client) AddComment(ctx context.Context, cardID, text string) error {
	endpoint := c.endpoint(fmt.Sprintf("/cards/%s/actions/comments", url.PathEscape(cardID)), url.Values{"text": {text}})
	if err := c.send(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("trello: comentar card %s: %w", cardID, err)
	}
	return nil
}

// SetCustomFieldByName grava o valor de um custom field do card, resolvendo
// o field pelo nome e montando o corpo conforme o tipo declarado no board
// (text, list, date ou number).
func (c *Client) SetCustomFieldByName(ctx context.Context, cardID, fieldName string, value string) error {
	fields, err := c.ListCustomFields(ctx)
	if err != nil {
		return err
	}

	var field *CustomField
	for i := range fields {
		if strings.EqualFold(fields[i].Name, fieldName) {
			field = &fields[i]
			break
		}
	}
	if field == nil {
		return fmt.Errorf("trello: custom field %q não existe no board", fieldName)
	}

	var body map[string]any
	switch field.Type {
	case "list":
		var optionID string
		for _, opt := range field.Options {
			if strings.EqualFold(opt.Value.Text, value) {
				optionID = opt.ID
				break
			}
		}
		if optionID == "" {
			return fmt.Errorf("trello: opção %q não existe no field %q", value, fieldName)
		}
		body = map[string]any{"idValue": optionID}
	case "text":
		body = map[string]any{"value": map[string]string{"text": value}}
	case "date":
		body = map[string]any{"value": map[string]string{"date": value}}
	case "number":
		body = map[string]any{"value": map[string]string{"number": value}}
	default:
		return fmt.Errorf("trello: tipo de custom field %q não suportado", field.Type)
	}

	endpoint := c.endpoint(fmt.Sprintf("/cards/%s/customField/%s/item", url.PathEscape(cardID), field.ID), nil)
	if err := c.send(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("trello: gravar custom field %q: %w", fieldName, err)
	}
	return nil
}

// CreateWebhook registra uma assinatura de eventos do board.
func (c *Client) CreateWebhook(ctx context.Context, callbackURL, description string) (*Webhook, error) {
	body := map[string]any{
		"callbackURL": callbackURL,
		"idModel":     c.boardID,
		"description": description,
	}

	var webhook Webhook
	endpoint := c.endpoint("/webhooks", nil)
	if err := c.send(ctx, http.MethodPost, endpoint, body, &webhook); err != nil {
		return nil, fmt.Errorf("trello: criar webhook: %w", err)
	}
	return &webhook, nil
}

// ListWebhooks devolve as assinaturas registradas para o token.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var webhooks []Webhook
	endpoint := c.endpoint(fmt.Sprintf("/tokens/%s/webhooks", url.PathEscape(c.token)), nil)
	if err := c.get(ctx, endpoint, &webhooks); err != nil {
		return nil, fmt.Errorf("trello: listar webhooks: %w", err)
	}
	return webhooks, nil
}

// DeleteWebhook remove uma assinatura.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	endpoint := c.endpoint("/webhooks/"+url.PathEscape(webhookID), nil)
	if err := c.send(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("trello: remover webhook %s: %w", webhookID, err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.apiKey)
	query.Set("token", c.token)
	return c.baseURL + path + "?" + query.Encode()
}

func (c *Client) get(ctx context.Context, endpoint string, v any) error {
	return c.send(ctx, http.MethodGet, endpoint, nil, v)
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
