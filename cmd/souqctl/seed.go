// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/souq/internal/blog"
	"github.com/tomtom215/souq/internal/catalog"
	"github.com/tomtom215/souq/internal/database"
	"github.com/tomtom215/souq/internal/i18n"
	"github.com/tomtom215/souq/internal/models"
)

// seedFile is the YAML layout accepted by the seed command:
//
//	languages:
//	  - {code: ar, name: Arabic, native_name: العربية, direction: rtl, active: true}
//	categories:
//	  - slug: drinkware
//	    translations: {en: {name: Drinkware}, ar: {name: أكواب}}
//	products:
//	  - sku: MUG-01
//	    category: drinkware
//	    price: 2500
//	    stock: 10
//	    translations: {en: {name: Coffee Mug}, ar: {name: كوب قهوة}}
//	posts:
//	  - slug: welcome
//	    published: true
//	    translations: {en: {title: Welcome, body: "..."}}
type seedFile struct {
	Languages  []seedLanguage `yaml:"languages"`
	Categories []seedCategory `yaml:"categories"`
	Products   []seedProduct  `yaml:"products"`
	Posts      []seedPost     `yaml:"posts"`
}

type seedLanguage struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	NativeName string `yaml:"native_name"`
	Direction  string `yaml:"direction"`
	Default    bool   `yaml:"default"`
	Active     bool   `yaml:"active"`
	SortOrder  int    `yaml:"sort_order"`
}

type seedCategory struct {
	Slug         string            `yaml:"slug"`
	Parent       string            `yaml:"parent"`
	SortOrder    int               `yaml:"sort_order"`
	Translations i18n.Translations `yaml:"translations"`
}

type seedProduct struct {
	SKU            string            `yaml:"sku"`
	Slug           string            `yaml:"slug"`
	Category       string            `yaml:"category"`
	Price          int64             `yaml:"price"` // minor units
	CompareAtPrice int64             `yaml:"compare_at_price"`
	Stock          int               `yaml:"stock"`
	Untracked      bool              `yaml:"untracked"`
	Featured       bool              `yaml:"featured"`
	Images         []string          `yaml:"images"`
	Translations   i18n.Translations `yaml:"translations"`
}

type seedPost struct {
	Slug         string            `yaml:"slug"`
	Published    bool              `yaml:"published"`
	CoverImage   string            `yaml:"cover_image"`
	Translations i18n.Translations `yaml:"translations"`
}

// seedReport counts what a seed run did.
type seedReport struct {
	Languages  int
	Categories int
	Products   int
	Posts      int
	Skipped    int
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// applySeed writes f through the catalog service so seeded content passes
// the same validation as admin edits. Categories and products whose slug
// already exists are skipped, so a seed file can be re-run.
func applySeed(ctx context.Context, a *app, f *seedFile) (*seedReport, error) {
	rep := &seedReport{}

	for _, l := range f.Languages {
		lang := &i18n.Language{
			Code:       l.Code,
			Name:       l.Name,
			NativeName: l.NativeName,
			Direction:  l.Direction,
			IsDefault:  l.Default,
			Active:     l.Active,
			SortOrder:  l.SortOrder,
		}
		if lang.Direction == "" {
			lang.Direction = i18n.LTR
		}
		if err := a.db.SaveLanguage(ctx, lang); err != nil {
			return rep, fmt.Errorf("language %s: %w", l.Code, err)
		}
		rep.Languages++
	}
	if len(f.Languages) > 0 {
		if err := a.languages.Reload(ctx, a.db); err != nil {
			return rep, err
		}
	}

	svc := catalog.NewService(a.db, a.languages, catalog.Config{Currency: a.cfg.Store.Currency})
	defer svc.Close()

	categoryIDs := map[string]string{}
	for _, c := range f.Categories {
		if existing, err := a.db.GetCategoryBySlug(ctx, c.Slug); err == nil {
			categoryIDs[c.Slug] = existing.ID
			rep.Skipped++
			continue
		} else if !errors.Is(err, database.ErrNotFound) {
			return rep, err
		}
		cat := &models.Category{
			Slug:         c.Slug,
			ParentID:     categoryIDs[c.Parent],
			SortOrder:    c.SortOrder,
			Translations: c.Translations,
			Active:       true,
		}
		if c.Parent != "" && cat.ParentID == "" {
			return rep, fmt.Errorf("category %s: parent %q must be listed before it", c.Slug, c.Parent)
		}
		if err := svc.CreateCategory(ctx, cat); err != nil {
			return rep, fmt.Errorf("category %s: %w", c.Slug, err)
		}
		categoryIDs[c.Slug] = cat.ID
		rep.Categories++
	}

	for _, p := range f.Products {
		prod := &models.Product{
			SKU:            p.SKU,
			Slug:           p.Slug,
			Price:          p.Price,
			CompareAtPrice: p.CompareAtPrice,
			Stock:          p.Stock,
			TrackStock:     !p.Untracked,
			Active:         true,
			Featured:       p.Featured,
			Images:         p.Images,
			Translations:   p.Translations,
		}
		if p.Category != "" {
			id, ok := categoryIDs[p.Category]
			if !ok {
				return rep, fmt.Errorf("product %s: unknown category %q", p.SKU, p.Category)
			}
			prod.CategoryID = id
		}
		if prod.Slug != "" {
			if _, err := a.db.GetProductBySlug(ctx, prod.Slug); err == nil {
				rep.Skipped++
				continue
			} else if !errors.Is(err, database.ErrNotFound) {
				return rep, err
			}
		}
		err := svc.CreateProduct(ctx, prod)
		switch {
		case errors.Is(err, database.ErrDuplicate):
			rep.Skipped++
			continue
		case err != nil:
			return rep, fmt.Errorf("product %s: %w", p.SKU, err)
		}
		rep.Products++
	}

	posts := blog.NewService(a.db, a.languages)
	for _, p := range f.Posts {
		if p.Slug != "" {
			if _, err := a.db.GetPostBySlug(ctx, p.Slug); err == nil {
				rep.Skipped++
				continue
			} else if !errors.Is(err, database.ErrNotFound) {
				return rep, err
			}
		}
		post := &models.Post{
			Slug:         p.Slug,
			Status:       models.PostDraft,
			CoverImage:   p.CoverImage,
			Translations: p.Translations,
		}
		if p.Published {
			post.Status = models.PostPublished
		}
		if err := posts.Create(ctx, post); err != nil {
			return rep, fmt.Errorf("post %s: %w", p.Slug, err)
		}
		rep.Posts++
	}
	return rep, nil
}

func seedCmd(open opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed --file catalog.yaml",
		Short: "Load languages, categories, products and posts from a YAML file",
		Long: `Load languages, categories, products and posts from a YAML file.

Languages are upserted. Categories, products and posts that already exist
(by slug, or by SKU for products) are left untouched, so the same file can
be applied again after editing.`,
		Args: cobra.NoArgs,
		RunE: open.run(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
			fh, err := os.Open(filepath.Clean(file))
			if err != nil {
				return err
			}
			defer fh.Close()

			f, err := parseSeed(fh)
			if err != nil {
				return err
			}
			rep, err := applySeed(ctx, a, f)
			if rep != nil {
				fmt.Fprintf(out, "languages: %d, categories: %d, products: %d, posts: %d, skipped: %d\n",
					rep.Languages, rep.Categories, rep.Products, rep.Posts, rep.Skipped)
			}
			return err
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
