package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
)

func TestEmbeddedCatalog(t *testing.T) {
	c, err := New("", nil)
	require.NoError(t, err)

	products := c.List()
	require.NotEmpty(t, products)
	for i := 1; i < len(products); i++ {
		require.Less(t, products[i-1].ID, products[i].ID)
	}

	p, err := c.Get("starter-monthly")
	require.NoError(t, err)
	require.Equal(t, int64(100), p.Credits)
	require.Equal(t, 1, p.ValidMonths)
	require.Equal(t, "9.9", p.Amount.String())

	_, err = c.Get("nope")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write(`[{"id":"a","name":"A","amount":"1.00","currency":"usd","credits":10,"valid_months":1}]`)

	c, err := New(path, nil)
	require.NoError(t, err)
	held := c.List()

	write(`[{"id":"a","name":"A","amount":"2.00","currency":"USD","credits":20,"valid_months":1},
	        {"id":"b","name":"B","amount":"5.00","currency":"USD","credits":50,"valid_months":3}]`)
	n, err := c.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	a, err := c.Get("a")
	require.NoError(t, err)
	require.Equal(t, int64(20), a.Credits)
	require.Equal(t, int64(10), held[0].Credits)
	require.Equal(t, "USD", held[0].Currency)
}

func TestReloadKeepsSnapshotOnBadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","name":"A","amount":"1","currency":"USD","credits":1,"valid_months":1}]`), 0o600))
	c, err := New(path, nil)
	require.NoError(t, err)

	for _, body := range []string{
		`not json`,
		`[]`,
		`[{"id":"a","name":"A","amount":"0","currency":"USD","credits":1,"valid_months":1}]`,
		`[{"id":"a","name":"A","amount":"1","currency":"USD","credits":1,"valid_months":0}]`,
		`[{"id":"a","name":"A","amount":"1","currency":"USD","credits":1,"valid_months":1},{"id":"a","name":"B","amount":"1","currency":"USD","credits":1,"valid_months":1}]`,
		`[{"id":"a","name":"A","amount":"1","currency":"USD","credits":1,"valid_months":1,"extra":true}]`,
	} {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := c.Reload(context.Background())
		require.Error(t, err, body)
	}
	_, err = c.Get("a")
	require.NoError(t, err)
}
