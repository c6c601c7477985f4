package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/seiri/pkg/approval"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/config"
	"github.com/shishobooks/seiri/pkg/grouper"
	"github.com/shishobooks/seiri/pkg/source"
	"github.com/shishobooks/seiri/pkg/source/catalogapi"
	"github.com/shishobooks/seiri/pkg/source/heuristic"
	"github.com/shishobooks/seiri/pkg/source/languagemodel"
	"github.com/shishobooks/seiri/pkg/source/websearch"
	"github.com/shishobooks/seiri/pkg/version"
	"github.com/shishobooks/seiri/pkg/worker"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	app := &cli.App{
		Name:    "seiri",
		Usage:   "identify audiobook entities in a directory tree and resolve their metadata",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "group a directory tree into book entities and resolve their fields",
				ArgsUsage: "<root>",
				Action:    runScan,
			},
			{
				Name:   "list",
				Usage:  "list known entities and their resolution state",
				Action: runList,
			},
			{
				Name:      "resolve",
				Usage:     "rerun the resolution cascade for one entity",
				ArgsUsage: "<entity-id>",
				Action:    runResolve,
			},
			{
				Name:   "save",
				Usage:  "persist the store document, merging against what's on disk",
				Action: runSave,
			},
			{
				Name:      "approve",
				Usage:     "approve an entity's resolved fields",
				ArgsUsage: "<entity-id>",
				Action:    statusAction(book.StatusApproved),
			},
			{
				Name:      "reject",
				Usage:     "reject an entity's resolved fields",
				ArgsUsage: "<entity-id>",
				Action:    statusAction(book.StatusRejected),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("seiri failed")
	}
}

func setup(c *cli.Context) (*config.Config, *worker.Worker, error) {
	cfg, err := config.New(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	store := approval.New(cfg.Store.Path, cfg.Store.AutosaveOnStatus)
	if err := store.Load(); err != nil {
		return nil, nil, err
	}

	sources := []source.Source{
		catalogapi.New(cfg.Catalog),
		languagemodel.New(cfg.LanguageModel),
		websearch.New(cfg.WebSearch),
		heuristic.New(),
	}

	return cfg, worker.New(cfg, store, sources...), nil
}

func runScan(c *cli.Context) error {
	log := logger.New()
	root := c.Args().First()
	if root == "" {
		return cli.Exit("a root directory is required", 2)
	}

	_, wrkr, err := setup(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	defer cancel()
	graceful := signals.Setup()
	go func() {
		<-graceful
		log.Info("cancelling batch; resolved entities are kept")
		cancel()
	}()

	cands, err := grouper.New().Scan(ctx, root)
	if err != nil {
		return err
	}
	log.Info("grouped candidates", logger.Data{"count": len(cands)})

	if err := wrkr.ProcessBatch(ctx, cands); err != nil && ctx.Err() == nil {
		return err
	}

	if err := wrkr.Store().Save(); err != nil {
		return err
	}
	return printEntities(wrkr.Store().List())
}

func runList(c *cli.Context) error {
	_, wrkr, err := setup(c)
	if err != nil {
		return err
	}
	return printEntities(wrkr.Store().List())
}

func runResolve(c *cli.Context) error {
	log := logger.New()
	id := c.Args().First()
	if id == "" {
		return cli.Exit("an entity id is required", 2)
	}

	_, wrkr, err := setup(c)
	if err != nil {
		return err
	}

	ctx := log.WithContext(context.Background())
	entity, err := wrkr.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := wrkr.Store().Save(); err != nil {
		return err
	}
	return printEntities([]*book.Entity{entity})
}

func runSave(c *cli.Context) error {
	_, wrkr, err := setup(c)
	if err != nil {
		return err
	}
	return wrkr.Store().Save()
}

func statusAction(status string) cli.ActionFunc {
	return func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.Exit("an entity id is required", 2)
		}

		cfg, wrkr, err := setup(c)
		if err != nil {
			return err
		}
		if err := wrkr.Store().SetStatus(id, status); err != nil {
			return err
		}
		if !cfg.Store.AutosaveOnStatus {
			return wrkr.Store().Save()
		}
		return nil
	}
}

func printEntities(entities []*book.Entity) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAUTHOR\tSERIES\t#\tTITLE")
	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Candidate.ID, e.Status, e.Author, e.Series, e.SeriesIndex, e.Title)
	}
	return w.Flush()
}
