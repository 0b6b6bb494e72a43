package patio

import "testing"

func TestMapListName(t *testing.T) {
	cases := []struct {
		input  string
		status Status
		ok     bool
	}{
		{"🧠Diagnóstico", StatusDiagnostico, true},
		{"diagnostico", StatusDiagnostico, true},
		{"EM SERVIÇO", StatusEmExecucao, true},
		{"  em serviço  ", StatusEmExecucao, true},
		{"🛠️🔩Em Execução", StatusEmExecucao, true},
		{"🙏🏻Entregue", StatusConcluido, true},
		{"Pronto / Aguardando Retirada", StatusProntoRetirada, true},
		{"Ideias de Marketing", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := MapListName(tc.input)
		if ok != tc.ok {
			t.Errorf("MapListName(%q): ok esperado %v, veio %v", tc.input, tc.ok, ok)
			continue
		}
		if ok && got != tc.status {
			t.Errorf("MapListName(%q): esperado %s, veio %s", tc.input, tc.status, got)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range Statuses {
		terminal := status.IsTerminal()
		if status == StatusConcluido && !terminal {
			t.Error("concluido deveria ser terminal")
		}
		if status != StatusConcluido && terminal {
			t.Errorf("%s não deveria ser terminal", status)
		}
	}
}

func TestMissingFields(t *testing.T) {
	cases := []struct {
		name    string
		card    Card
		missing []string
	}{
		{
			name:    "completo",
			card:    Card{Status: StatusEmExecucao, Plate: "ABC1234", Service: "Troca de óleo", Client: "João"},
			missing: nil,
		},
		{
			name:    "sem servico",
			card:    Card{Status: StatusEmExecucao, Plate: "ABC1234"},
			missing: []string{"service"},
		},
		{
			name:    "aguardando aprovacao sem nada",
			card:    Card{Status: StatusAguardandoAprovacao},
			missing: []string{"service", "client", "plate"},
		},
		{
			name:    "pronto sem cliente",
			card:    Card{Status: StatusProntoRetirada, Plate: "ABC1234"},
			missing: []string{"client"},
		},
		{
			name:    "status desconhecido",
			card:    Card{Status: Status("inexistente")},
			missing: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MissingFields(tc.card)
			if len(got) != len(tc.missing) {
				t.Fatalf("esperado %v, veio %v", tc.missing, got)
			}
			for i := range got {
				if got[i] != tc.missing[i] {
					t.Errorf("posição %d: esperado %q, veio %q", i, tc.missing[i], got[i])
				}
			}
		})
	}
}
