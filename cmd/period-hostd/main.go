// Command period-hostd runs a single period-host validator: it wires
// configuration, the genesis participant list, the ledger/round/period
// core, and a CometBFT node driving it through the abciapp adapter.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cometbft/cometbft-db"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	cmtnode "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/period-host/internal/exampleprotocol"
	"github.com/certen/period-host/internal/genesis"
	"github.com/certen/period-host/internal/hostconfig"
	"github.com/certen/period-host/internal/plog"
	"github.com/certen/period-host/pkg/abciapp"
	"github.com/certen/period-host/pkg/abciapp/metrics"
	"github.com/certen/period-host/pkg/abciapp/recoverystore"
	"github.com/certen/period-host/pkg/audit"
	"github.com/certen/period-host/pkg/consensusparams"
	"github.com/certen/period-host/pkg/crypto/bls"
	"github.com/certen/period-host/pkg/ledger"
	"github.com/certen/period-host/pkg/ledger/edrecover"
	"github.com/certen/period-host/pkg/ledger/ethrecover"
	"github.com/certen/period-host/pkg/period"
	"github.com/certen/period-host/pkg/round"
)

// LedgerID is the ledger this host verifies every transaction's
// signature under. A production deployment would make this
// configurable per-chain; the example protocol only needs one.
const LedgerID = "ed25519"

func main() {
	log := plog.New("period-hostd")

	cfg, err := hostconfig.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	doc, err := genesis.Load(cfg.GenesisParticipantsPath)
	if err != nil {
		log.Fatalf("load genesis: %v", err)
	}

	params, err := consensusparams.New(int64(len(doc.Participants)))
	if err != nil {
		log.Fatalf("consensus params: %v", err)
	}

	registry := ledger.NewRegistry()
	edRecoverer := edrecover.New()
	for _, p := range doc.Participants {
		if p.Ed25519Pub == "" {
			continue
		}
		pub, err := hex.DecodeString(p.Ed25519Pub)
		if err != nil {
			log.Fatalf("participant %s: decode ed25519 pubkey: %v", p.Address, err)
		}
		edRecoverer.Enroll(p.Address, pub)
	}
	registry.Register(LedgerID, edRecoverer)
	registry.Register("eth-sepolia", ethrecover.New())

	participants := doc.Addresses()
	initialRound := exampleprotocol.NewCommitRound(params, participants)
	p := period.New(initialRound).WithSuccessionTable(period.SuccessionTable{
		exampleprotocol.RevealRoundKey: func(result any) round.Round {
			commitments := result.(map[string][]byte)
			return exampleprotocol.NewRevealRound(params, commitments, participants)
		},
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	recoveryDir := filepath.Join(cfg.DataDir, "period-host")
	if err := os.MkdirAll(recoveryDir, 0o755); err != nil {
		log.Fatalf("create recovery state dir: %v", err)
	}
	stateDB, err := dbm.NewDB("abciapp-state", dbm.GoLevelDBBackend, recoveryDir)
	if err != nil {
		log.Fatalf("open recovery state db: %v", err)
	}
	store := recoverystore.New(stateDB)

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	app := abciapp.New(p, registry, LedgerID, store, m)

	if cfg.BLSKeyPath != "" {
		validators, err := doc.BLSValidatorSet()
		if err != nil {
			log.Fatalf("load bls validator set: %v", err)
		}
		if len(validators) == 0 {
			log.Fatalf("bls key path %s set but genesis lists no bls public keys", cfg.BLSKeyPath)
		}

		km := bls.NewKeyManager(cfg.BLSKeyPath)
		if err := km.LoadOrGenerateKey(); err != nil {
			log.Fatalf("load or generate bls key: %v", err)
		}
		if _, ok := validators[cfg.ValidatorID]; !ok {
			log.Fatalf("validator %s has no bls public key in genesis", cfg.ValidatorID)
		}

		app = app.WithAttestation(cfg.ValidatorID, km.GetPrivateKey(), validators, params.TwoThirdsThreshold())

		if cfg.DatabaseURL != "" {
			auditStore, err := audit.Open(context.Background(), cfg.DatabaseURL,
				audit.WithPool(cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, cfg.DatabaseConnMaxLifetime))
			if err != nil {
				if cfg.DatabaseRequired {
					log.Fatalf("open audit store: %v", err)
				}
				log.Printf("audit store unavailable, round attestations will not be persisted: %v", err)
			} else {
				defer auditStore.Close()
				app = app.WithAuditStore(auditStore)
			}
		}
	}

	cometNode, err := startCometBFTNode(cfg, doc, app, log)
	if err != nil {
		log.Fatalf("start cometbft node: %v", err)
	}
	defer cometNode.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
}

func startCometBFTNode(cfg *hostconfig.Config, doc *genesis.Doc, app abcitypes.Application, log *log.Logger) (*cmtnode.Node, error) {
	cometCfg := cmtconfig.DefaultConfig()
	cometCfg.SetRoot(cfg.DataDir)
	cometCfg.P2P.ListenAddress = fmt.Sprintf("tcp://0.0.0.0:%d", cfg.P2PPort)
	cometCfg.RPC.ListenAddress = fmt.Sprintf("tcp://0.0.0.0:%d", cfg.RPCPort)
	cometCfg.Moniker = cfg.ValidatorID
	cometCfg.DBBackend = "goleveldb"

	if err := os.MkdirAll(filepath.Dir(cometCfg.PrivValidatorKeyFile()), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cometCfg.NodeKeyFile()), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	pv := privval.LoadOrGenFilePV(cometCfg.PrivValidatorKeyFile(), cometCfg.PrivValidatorStateFile())
	nodeKey, err := p2p.LoadOrGenNodeKey(cometCfg.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load node key: %w", err)
	}

	if err := writeGenesisDocIfNeeded(cometCfg, doc); err != nil {
		return nil, fmt.Errorf("write genesis doc: %w", err)
	}

	dbProvider := cmtconfig.DBProvider(func(ctx *cmtconfig.DBContext) (dbm.DB, error) {
		return dbm.NewDB(ctx.ID, dbm.BackendType(cometCfg.DBBackend), filepath.Join(cometCfg.RootDir, "data"))
	})

	tmLogger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)).With("module", "cometbft")

	n, err := cmtnode.NewNode(
		cometCfg,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(app),
		cmtnode.DefaultGenesisDocProviderFunc(cometCfg),
		dbProvider,
		cmtnode.DefaultMetricsProvider(cometCfg.Instrumentation),
		tmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("create cometbft node: %w", err)
	}
	if err := n.Start(); err != nil {
		return nil, fmt.Errorf("start cometbft node: %w", err)
	}
	return n, nil
}

// writeGenesisDocIfNeeded writes a deterministic genesis document
// listing every genesis participant as an equal-power validator, if
// one doesn't already exist at the configured path.
func writeGenesisDocIfNeeded(cometCfg *cmtconfig.Config, doc *genesis.Doc) error {
	genFile := cometCfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(genFile), 0o755); err != nil {
		return fmt.Errorf("create genesis dir: %w", err)
	}

	validators := make([]cmttypes.GenesisValidator, 0, len(doc.Participants))
	for _, p := range doc.Participants {
		if p.Ed25519Pub == "" {
			continue
		}
		raw, err := hex.DecodeString(p.Ed25519Pub)
		if err != nil {
			return fmt.Errorf("participant %s: decode ed25519 pubkey: %w", p.Address, err)
		}
		pubKey := cmted25519.PubKey(raw)
		validators = append(validators, cmttypes.GenesisValidator{
			Address: pubKey.Address(),
			PubKey:  pubKey,
			Power:   1,
			Name:    p.Address,
		})
	}

	genesisDoc := &cmttypes.GenesisDoc{
		ChainID:         doc.ChainID,
		GenesisTime:     time.Now(),
		InitialHeight:   1,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		Validators:      validators,
		AppState:        json.RawMessage(`{}`),
	}
	return genesisDoc.SaveAs(genFile)
}
