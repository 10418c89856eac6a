package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const catalogYAML = `projects:
  - id: 201
    name: Station plaza lighting
    location: 松戸市・駅前
    budget: 12000000
    tags: [電気]
    desc: LED replacement.
    image: 💡
  - id: 202
    name: River embankment
    location: 流山市・東
    budget: 90000000
    tags: [土木, 資材]
`

func ids(ps []model.Project) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestStaticCatalog(t *testing.T) {
	Convey("Given the sample catalog", t, func() {
		c, err := catalog.NewStatic(catalog.SampleProjects())
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("Then it lists three projects in order", func() {
			ps, err := c.Projects(ctx)
			So(err, ShouldBeNil)
			So(ids(ps), ShouldResemble, []int{101, 102, 103})
			So(ps[0].Budget, ShouldEqual, model.Amount(50_000_000))
		})

		Convey("Then a project is found by id", func() {
			p, err := c.Project(ctx, 103)
			So(err, ShouldBeNil)
			So(p.Requires("資材"), ShouldBeTrue)
		})

		Convey("Then an unknown id is not found", func() {
			_, err := c.Project(ctx, 999)
			So(errors.Is(err, catalog.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then callers cannot change the catalog", func() {
			ps, _ := c.Projects(ctx)
			ps[0].RequiredTags[0] = "changed"
			p, _ := c.Project(ctx, 101)
			So(p.RequiredTags[0], ShouldEqual, "土木")
		})
	})

	Convey("Given invalid projects", t, func() {
		_, err := catalog.NewStatic([]model.Project{{ID: 1, Name: "x", Location: "y", Budget: 0, RequiredTags: []string{"a"}}})
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)

		dup := catalog.SampleProjects()
		dup[1].ID = dup[0].ID
		_, err = catalog.NewStatic(dup)
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)

		_, err = catalog.NewStatic([]model.Project{{ID: 1, Name: "x", Location: "y", Budget: 1}})
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)
	})
}

func TestFilter(t *testing.T) {
	Convey("Given the sample projects", t, func() {
		ps := catalog.SampleProjects()

		So(ids(catalog.Filter(ps, catalog.Query{})), ShouldResemble, []int{101, 102, 103})
		So(ids(catalog.Filter(ps, catalog.Query{Area: "柏市"})), ShouldResemble, []int{101, 102, 103})
		So(ids(catalog.Filter(ps, catalog.Query{Area: "松戸市"})), ShouldResemble, []int{})
		So(ids(catalog.Filter(ps, catalog.Query{Tags: []string{"舗装"}})), ShouldResemble, []int{101})
		So(ids(catalog.Filter(ps, catalog.Query{Tags: []string{"電気", "資材"}})), ShouldResemble, []int{102, 103})
		So(ids(catalog.Filter(ps, catalog.Query{Area: "柏市", Tags: []string{"土木"}})), ShouldResemble, []int{101, 103})
	})
}

func TestFileCatalog(t *testing.T) {
	Convey("Given a YAML catalog on disk", t, func() {
		path := filepath.Join(t.TempDir(), "projects.yaml")
		So(os.WriteFile(path, []byte(catalogYAML), 0o600), ShouldBeNil)

		c, err := catalog.LoadFile(path)
		So(err, ShouldBeNil)

		Convey("Then its projects are loaded", func() {
			p, err := c.Project(context.Background(), 201)
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "Station plaza lighting")
			So(p.Budget, ShouldEqual, model.Amount(12_000_000))
			So(p.RequiredTags, ShouldResemble, []string{"電気"})
			So(p.Description, ShouldEqual, "LED replacement.")
			So(p.Image, ShouldEqual, "💡")
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := catalog.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("Given broken YAML", t, func() {
		_, err := catalog.Parse([]byte("projects: [oops"))
		So(errors.Is(err, catalog.ErrInvalid), ShouldBeTrue)
	})
}

func TestPostgresCatalog(t *testing.T) {
	url := os.Getenv("GCART_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GCART_TEST_DATABASE_URL not set")
	}

	Convey("Given a seeded projects table", t, func() {
		ctx := context.Background()
		c, err := catalog.NewPostgres(ctx, url)
		So(err, ShouldBeNil)
		defer c.Close()

		ps, err := c.Projects(ctx)
		So(err, ShouldBeNil)

		Convey("Then every row maps to a valid project", func() {
			for _, p := range ps {
				got, err := c.Project(ctx, p.ID)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, p.ID)
				So(got.Budget > 0, ShouldBeTrue)
			}
		})

		Convey("Then a missing id is not found", func() {
			_, err := c.Project(ctx, -1)
			So(errors.Is(err, catalog.ErrNotFound), ShouldBeTrue)
		})
	})
}
