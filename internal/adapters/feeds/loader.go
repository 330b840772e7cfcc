// Package feeds fetches conversion rates from external sources. Every loader
// serves one main unit and prices other units against it for a given day.
// Fetch failures never escape a loader: they are logged and the affected
// units are simply missing from the result.
package feeds

import (
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
)

var (
	_ portsrepo.RateLoader = (*CBRLoader)(nil)
	_ portsrepo.RateLoader = (*CryptoLoader)(nil)
)

func wanted(units []domain.Unit) map[domain.Unit]bool {
	if len(units) == 0 {
		return nil
	}
	set := make(map[domain.Unit]bool, len(units))
	for _, u := range units {
		set[u] = true
	}
	return set
}
