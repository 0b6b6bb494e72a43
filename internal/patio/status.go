package patio

import "strings"

// Status é a etapa canônica de um veículo dentro do fluxo da oficina.
// A progressão não é estritamente linear (há desvios para espera de peças e
// retrabalho); concluido é o único estado terminal.
type Status string

const (
	StatusForaDaLoja          Status = "fora_da_loja"
	StatusDiagnostico         Status = "diagnostico"
	StatusOrcamento           Status = "orcamento"
	StatusAguardandoAprovacao Status = "aguardando_aprovacao"
	StatusBOPeca              Status = "bo_peca"
	StatusAguardandoPecas     Status = "aguardando_pecas"
	StatusEmExecucao          Status = "em_execucao"
	StatusEmTeste             Status = "em_teste"
	StatusProntoRetirada      Status = "pronto_retirada"
	StatusConcluido           Status = "concluido"
)

// Statuses lista as etapas na ordem de progressão do fluxo.
var Statuses = []Status{
	StatusForaDaLoja,
	StatusDiagnostico,
	StatusOrcamento,
	StatusAguardandoAprovacao,
	StatusBOPeca,
	StatusAguardandoPecas,
	StatusEmExecucao,
	StatusEmTeste,
	StatusProntoRetirada,
	StatusConcluido,
}

// IsTerminal indica se a etapa encerra o fluxo.
func (s Status) IsTerminal() bool {
	return s == StatusConcluido
}

// listNameToStatus mapeia nomes de listas do board (normalizados) para a
// etapa canônica. Cobre os nomes com emoji usados no board real e as
// variantes simples, com e sem acento.
var listNameToStatus = map[string]Status{
	"fora da loja": StatusForaDaLoja,

	"🧠diagnóstico": StatusDiagnostico,
	"diagnóstico":  StatusDiagnostico,
	"diagnostico":  StatusDiagnostico,

	"📝orçamento":           StatusOrcamento,
	"orçamento":            StatusOrcamento,
	"orcamento":            StatusOrcamento,
	"orçamentos pendentes": StatusOrcamento,

	"🤔aguardando aprovação": StatusAguardandoAprovacao,
	"aguardando aprovação":  StatusAguardandoAprovacao,
	"aguardando aprovacao":  StatusAguardandoAprovacao,
	"aguard. aprovação":     StatusAguardandoAprovacao,

	"b.o peça": StatusBOPeca,
	"b.o peca": StatusBOPeca,
	"bo peça":  StatusBOPeca,

	"😤aguardando peças": StatusAguardandoPecas,
	"aguardando peças":  StatusAguardandoPecas,
	"aguardando pecas":  StatusAguardandoPecas,
	"aguard. peças":     StatusAguardandoPecas,

	"🛠️🔩em execução": StatusEmExecucao,
	"em execução":   StatusEmExecucao,
	"em execucao":   StatusEmExecucao,
	"em serviço":    StatusEmExecucao,
	"em servico":    StatusEmExecucao,

	"em teste": StatusEmTeste,
	"teste":    StatusEmTeste,

	"💰pronto / aguardando retirada": StatusProntoRetirada,
	"pronto / aguardando retirada":  StatusProntoRetirada,
	"pronto para retirada":          StatusProntoRetirada,
	"🟡 prontos":                     StatusProntoRetirada,
	"prontos":                       StatusProntoRetirada,

	"🙏🏻entregue": StatusConcluido,
	"entregue":  StatusConcluido,
	"concluído": StatusConcluido,
	"concluido": StatusConcluido,
}

// MapListName resolve o nome de uma lista do board para a etapa canônica.
// A busca ignora maiúsculas e espaços nas bordas. Nomes desconhecidos
// devolvem ok=false e o card fica fora das visões do pátio; não é erro.
func MapListName(name string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	status, ok := listNameToStatus[key]
	return status, ok
}

// StatusMeta é o contrato de apresentação de uma etapa: rótulo, cor e quais
// campos do card são obrigatórios naquele ponto do fluxo.
type StatusMeta struct {
	Label           string `json:"label"`
	Color           string `json:"color"`
	RequiresService bool   `json:"requires_service"`
	RequiresClient  bool   `json:"requires_client"`
	RequiresPlate   bool   `json:"requires_plate"`
}

var statusMeta = map[Status]StatusMeta{
	StatusForaDaLoja:          {Label: "Fora da Loja", Color: "blue", RequiresPlate: true},
	StatusDiagnostico:         {Label: "Diagnóstico", Color: "purple", RequiresPlate: true},
	StatusOrcamento:           {Label: "Orçamento", Color: "sky", RequiresPlate: true, RequiresService: true},
	StatusAguardandoAprovacao: {Label: "Aguardando Aprovação", Color: "yellow", RequiresPlate: true, RequiresService: true, RequiresClient: true},
	StatusBOPeca:              {Label: "B.O Peça", Color: "red", RequiresPlate: true, RequiresService: true},
	StatusAguardandoPecas:     {Label: "Aguardando Peças", Color: "orange", RequiresPlate: true, RequiresService: true},
	StatusEmExecucao:          {Label: "Em Execução", Color: "indigo", RequiresPlate: true, RequiresService: true},
	StatusEmTeste:             {Label: "Em Teste", Color: "teal", RequiresPlate: true, RequiresService: true},
	StatusProntoRetirada:      {Label: "Pronto para Retirada", Color: "green", RequiresPlate: true, RequiresClient: true},
	StatusConcluido:           {Label: "Concluído", Color: "emerald", RequiresPlate: true, RequiresClient: true},
}

// MetaFor devolve o contrato de apresentação da etapa.
func MetaFor(s Status) (StatusMeta, bool) {
	meta, ok := statusMeta[s]
	return meta, ok
}

// MissingFields devolve os campos obrigatórios da etapa atual que o card
// ainda não preenche, na ordem service, client, plate.
func MissingFields(card Card) []string {
	meta, ok := statusMeta[card.Status]
	if !ok {
		return nil
	}

	var missing []string
	if meta.RequiresService && strings.TrimSpace(card.Service) == "" {
		missing = append(missing, "service")
	}
	if meta.RequiresClient && strings.TrimSpace(card.Client) == "" {
		missing = append(missing, "client")
	}
	if meta.RequiresPlate && strings.TrimSpace(card.Plate) == "" {
		missing = append(missing, "plate")
	}
	return missing
}
