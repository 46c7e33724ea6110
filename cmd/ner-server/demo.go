package main

// demoText is a sample paragraph grouped by subject.
type demoText struct {
	Domain string `json:"domain"`
	Text   string `json:"text"`
}

var demoTexts = []demoText{
	{
		Domain: "saúde",
		Text: "A Fiocruz e o Instituto Butantan ampliaram a produção de vacinas em 2024. " +
			"A pneumologista Margareth Dalcolmo apresentou em São Paulo os resultados do estudo sobre a Covid-19, " +
			"que agora será avaliado pela Anvisa.",
	},
	{
		Domain: "história",
		Text: "Dom Pedro I declarou a independência às margens do Rio Ipiranga em 1822. " +
			"Décadas depois, a Princesa Isabel assinou a Lei Áurea no Rio de Janeiro, " +
			"e Zumbi dos Palmares é lembrado todo ano em 20 de novembro.",
	},
	{
		Domain: "tecnologia",
		Text: "O Nubank abriu um escritório no México e contratou engenheiros em Belo Horizonte. " +
			"A Embraer, com sede em São José dos Campos, anunciou um acordo com a Boeing " +
			"para testar combustíveis sustentáveis.",
	},
	{
		Domain: "cultura",
		Text: "Tarsila do Amaral e Mário de Andrade participaram da Semana de Arte Moderna no Theatro Municipal. " +
			"Anos depois, Carmen Miranda levou o samba de Salvador aos palcos de Nova York, " +
			"e Jorge Amado publicou Gabriela, Cravo e Canela.",
	},
	{
		Domain: "esportes",
		Text: "O técnico Dorival Júnior convocou Vinícius Júnior, do Real Madrid, para a Copa América. " +
			"A seleção treina no Maracanã antes do amistoso contra a Argentina, " +
			"enquanto Ayrton Senna segue homenageado em Interlagos.",
	},
	{
		Domain: "desambiguação",
		Text: "Paris Hilton passou a semana em Paris. Santos Dumont voou com o 14-Bis na capital francesa, " +
			"e o Santos venceu o clássico na Vila Belmiro.",
	},
}
