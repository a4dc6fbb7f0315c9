package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/calc"
	"ledger/internal/clock"
	"ledger/internal/ledger"
	"ledger/internal/ops"
	"ledger/internal/schema"
	"ledger/internal/store"
)

func testID(b byte) schema.Identity {
	var id schema.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

type pipe struct {
	io.Reader
	io.Writer
}

func runLines(t *testing.T, h *connHandler, lines ...string) []response {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, h.handle(context.Background(), pipe{Reader: in, Writer: &out}))

	var resps []response
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	require.NoError(t, sc.Err())
	return resps
}

func TestConnHandlerExecutes(t *testing.T) {
	admin, alice := testID(0xAD), testID(0x01)
	engine := ledger.NewEngine(store.NewMemory(), clock.NewManual(10, 1_700_000_000))
	h := &connHandler{engine: engine, maxLine: 512}

	req := func(op string, caller schema.Identity, amount uint64) string {
		return fmt.Sprintf(`{"op":%q,"caller":%q,"amount":%d}`, op, caller.String(), amount)
	}
	resps := runLines(t, h,
		req(ledger.OpInitializeBank, admin, 0),
		req(ledger.OpCreateUser, alice, 0),
		"",
		req(ledger.OpDeposit, alice, 100*calc.TokenUnit),
		req(ledger.OpWithdraw, alice, 500*calc.TokenUnit),
		req("launch", alice, 0),
		`{"op":`,
	)
	require.Len(t, resps, 6)

	require.NotNil(t, resps[0].Notification)
	assert.Equal(t, schema.EventBankInitialized, resps[0].Notification.Type)
	assert.Equal(t, schema.EventUserCreated, resps[1].Notification.Type)

	require.NotNil(t, resps[2].Notification)
	assert.Equal(t, 100*calc.TokenUnit, resps[2].Notification.Balance)
	assert.Empty(t, resps[2].Code)

	assert.Nil(t, resps[3].Notification)
	assert.Equal(t, "InsufficientBalance", resps[3].Code)
	assert.Equal(t, "UnknownOperation", resps[4].Code)
	assert.Equal(t, codeBadRequest, resps[5].Code)
}

func TestConnHandlerFrameTooLarge(t *testing.T) {
	engine := ledger.NewEngine(store.NewMemory(), clock.NewManual(10, 1_700_000_000))
	h := &connHandler{engine: engine, maxLine: 128}

	long := `{"op":"deposit","caller":"` + strings.Repeat("x", 300) + `"}`
	resps := runLines(t, h, long, `{"op":"check_balance","caller":"`+testID(1).String()+`"}`)
	require.Len(t, resps, 2)
	assert.Equal(t, codeFrameTooLarge, resps[0].Code)
	assert.Equal(t, "BankNotInitialized", resps[1].Code)
}

func TestSnapshotterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ledger.json")
	ctx := context.Background()

	st, snap, err := openStore(ctx, ops.StoreSettings{Backend: ops.BackendMemory, SnapshotPath: path, SnapshotInterval: 1})
	require.NoError(t, err)
	require.NotNil(t, snap)

	engine := ledger.NewEngine(st, clock.NewManual(10, 1_700_000_000))
	_, err = engine.InitializeBank(ctx, testID(0xAD))
	require.NoError(t, err)
	_, err = engine.CreateUser(ctx, testID(1))
	require.NoError(t, err)
	_, err = engine.Deposit(ctx, testID(1), 7*calc.TokenUnit)
	require.NoError(t, err)
	require.NoError(t, snap.save())

	restored, _, err := openStore(ctx, ops.StoreSettings{Backend: ops.BackendMemory, SnapshotPath: path, SnapshotInterval: 1})
	require.NoError(t, err)
	n, err := ledger.NewEngine(restored, clock.NewManual(10, 1_700_000_000)).CheckBalance(ctx, testID(1))
	require.NoError(t, err)
	assert.Equal(t, 7*calc.TokenUnit, n.Balance)
}

func TestBuildSinks(t *testing.T) {
	cfg, err := ops.Parse([]byte(`{"journal": {"enabled": false}, "features": {"logNotifications": false}}`))
	require.NoError(t, err)
	sink, closeAll, err := buildSinks(cfg, nil)
	require.NoError(t, err)
	defer closeAll()
	assert.NoError(t, sink.Notify(context.Background(), schema.Notification{Type: schema.EventDeposit}))

	cfg, err = ops.Parse([]byte(fmt.Sprintf(`{"journal": {"dir": %q}}`, t.TempDir())))
	require.NoError(t, err)
	sink, closeAll, err = buildSinks(cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, sink.Notify(context.Background(), schema.Notification{Type: schema.EventDeposit, Seq: 1}))
	closeAll()
}
