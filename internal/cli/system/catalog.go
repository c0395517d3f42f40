package system

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/julianstephens/streakd/internal/achievements"
	"github.com/julianstephens/streakd/internal/cli"
)

// CatalogCmd lists every achievement that can be unlocked
type CatalogCmd struct {
	JSON bool `help:"Print the catalog as JSON."`
}

func (cmd *CatalogCmd) Run(ctx *cli.Context) error {
	all := achievements.All()
	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	var kind achievements.Kind
	for _, a := range all {
		if a.Kind != kind {
			kind = a.Kind
			fmt.Printf("\n%s\n", kind)
		}
		fmt.Printf("  %s %-22s %5d  +%d tokens  %s\n", a.Icon, a.Name, a.Threshold, a.TokenReward, a.Description)
	}
	return nil
}
