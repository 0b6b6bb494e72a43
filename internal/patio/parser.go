package patio

import "strings"

// CardFields são os campos estruturados extraídos do nome de um card.
type CardFields struct {
	Plate   string
	Vehicle string
	Client  string
}

// ParseCardName quebra o nome livre de um card em placa, veículo e cliente.
// A convenção do board é "PLACA VEÍCULO CLIENTE...":
//   - sem tokens → tudo vazio
//   - 1 token → apenas placa
//   - 2 tokens → placa e veículo
//   - 3+ tokens → placa, veículo e o restante como nome do cliente
//
// Não valida formato de placa; isso é responsabilidade da camada de exibição.
func ParseCardName(name string) CardFields {
	tokens := strings.Fields(name)

	switch len(tokens) {
	case 0:
		return CardFields{}
	case 1:
		return CardFields{Plate: tokens[0]}
	case 2:
		return CardFields{Plate: tokens[0], Vehicle: tokens[1]}
	default:
		return CardFields{
			Plate:   tokens[0],
			Vehicle: tokens[1],
			Client:  strings.Join(tokens[2:], " "),
		}
	}
}
