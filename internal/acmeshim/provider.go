package acmeshim

// tableProvider implements github.com/go-acme/lego/v4/challenge.Provider
// by writing into the shared ChallengeTable instead of running its own
// HTTP listener: gatewayd's own HTTP listener serves
// /.well-known/acme-challenge/<token> directly out of the table.
type tableProvider struct {
	table *ChallengeTable
}

func newTableProvider(table *ChallengeTable) *tableProvider {
	return &tableProvider{table: table}
}

// Present stores the token's key authorization so C8 can answer the
// HTTP-01 challenge request.
func (p *tableProvider) Present(domain, token, keyAuth string) error {
	p.table.Put(token, keyAuth)
	return nil
}

// CleanUp removes the token once the CA has validated (or abandoned) the
// challenge.
func (p *tableProvider) CleanUp(domain, token, keyAuth string) error {
	p.table.Delete(token)
	return nil
}
