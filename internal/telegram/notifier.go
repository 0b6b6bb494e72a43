package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Notifier envia avisos do pátio para canais externos.
type Notifier interface {
	Notify(ctx context.Context, msg Notification) error
}

// NotificationType distingue os avisos enviados ao grupo da oficina.
type NotificationType string

const (
	TypeBOPeca      NotificationType = "bo_peca"
	TypeCarroPronto NotificationType = "carro_pronto"
)

// Notification descreve um aviso sobre um veículo do pátio.
type Notification struct {
	Type       NotificationType
	Plate      string
	Vehicle    string
	Mecanico   string
	Horario    string
	Observacao string
}

// BotNotifier envia mensagens para um grupo via Bot API do Telegram.
type BotNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewBotNotifier devolve nil quando as credenciais não estão configuradas.
func NewBotNotifier(botToken, chatID string) *BotNotifier {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &BotNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify envia o aviso formatado para o grupo configurado.
func (t *BotNotifier) Notify(ctx context.Context, msg Notification) error {
	if t == nil || t.botToken == "" {
		return errors.New("telegram notifier não configurado")
	}

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       formatMessage(msg),
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: status %d", resp.StatusCode)
	}
	return nil
}

func formatMessage(msg Notification) string {
	veiculo := msg.Plate
	if msg.Vehicle != "" {
		veiculo = fmt.Sprintf("%s (%s)", msg.Plate, msg.Vehicle)
	}

	var b bytes.Buffer
	switch msg.Type {
	case TypeBOPeca:
		b.WriteString("🚨 *B.O PEÇA - PROBLEMA IDENTIFICADO*\n\n")
		fmt.Fprintf(&b, "🚗 *Veículo:* %s\n", veiculo)
		if msg.Mecanico != "" {
			fmt.Fprintf(&b, "👤 *Mecânico:* %s\n", msg.Mecanico)
		}
		if msg.Horario != "" {
			fmt.Fprintf(&b, "🕐 *Horário:* %s\n", msg.Horario)
		}
		if msg.Observacao != "" {
			fmt.Fprintf(&b, "\n📝 *Observação:* %s", msg.Observacao)
		}
		b.WriteString("\n\n⚠️ *Ação necessária:* Verificar disponibilidade de peças")
	case TypeCarroPronto:
		b.WriteString("✅ *CARRO PRONTO PARA RETIRADA*\n\n")
		fmt.Fprintf(&b, "🚗 *Veículo:* %s\n", veiculo)
		if msg.Mecanico != "" {
			fmt.Fprintf(&b, "👤 *Mecânico:* %s\n", msg.Mecanico)
		}
		if msg.Horario != "" {
			fmt.Fprintf(&b, "🕐 *Horário de conclusão:* %s\n", msg.Horario)
		}
		if msg.Observacao != "" {
			fmt.Fprintf(&b, "\n📝 *Observação:* %s", msg.Observacao)
		}
		b.WriteString("\n\n📞 *Ação necessária:* Entrar em contato com o cliente")
	default:
		fmt.Fprintf(&b, "ℹ️ %s", veiculo)
	}
	return b.String()
}
