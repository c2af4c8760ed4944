package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"io"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/tbd54566975/tbdex-go/config"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/dsa"
	"github.com/tbd54566975/tbdex-go/pkg/crypto/keymanager"
	"github.com/tbd54566975/tbdex-go/pkg/dids"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didjwk"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didkey"
	"github.com/tbd54566975/tbdex-go/pkg/dids/didweb"
	"github.com/tbd54566975/tbdex-go/pkg/dids/resolver"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
)

var errUsage = errors.New("usage: tbdex [-config path] did create|did resolve|sign|verify|digest|exchange add|exchange show|exchange list")

type app struct {
	cfg      *config.TBDexConfig
	registry *resolver.Registry
	in       io.Reader
	out      io.Writer
}

func newApp(cfg *config.TBDexConfig, in io.Reader, out io.Writer) (*app, error) {
	registry, err := resolver.NewRegistryFromConfig(cfg.Resolver)
	if err != nil {
		return nil, errors.Wrap(err, "creating resolver registry")
	}
	return &app{cfg: cfg, registry: registry, in: in, out: out}, nil
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "did":
		if len(args) < 2 {
			return errUsage
		}
		switch args[1] {
		case "create":
			return a.createDID(args[2:])
		case "resolve":
			return a.resolveDID(ctx, args[2:])
		}
	case "sign":
		return a.sign(args[1:])
	case "verify":
		return a.verify(ctx, args[1:])
	case "digest":
		return a.digest(args[1:])
	case "exchange":
		return a.exchange(ctx, args[1:])
	}
	return errUsage
}

func (a *app) keyManager() (*keymanager.LocalKeyManager, error) {
	var opts []keymanager.Option
	if a.cfg.Keys.Password != "" {
		opts = append(opts, keymanager.WithEncryption(a.cfg.Keys.Password, nil))
	}
	return keymanager.NewLocalKeyManager(opts...)
}

func (a *app) createDID(args []string) error {
	flags := flag.NewFlagSet("did create", flag.ContinueOnError)
	method := flags.String("method", didjwk.Method, "DID method: jwk, key or web")
	alg := flags.String("alg", a.cfg.Keys.Algorithm, "signature algorithm: EdDSA or ES256K")
	origin := flags.String("origin", "", "origin hosting the did:web document")
	if err := flags.Parse(args); err != nil {
		return err
	}

	algorithm := dsa.Algorithm(*alg)
	if !slices.Contains(dsa.SupportedAlgorithms(), algorithm) {
		return errors.Wrapf(dsa.ErrUnsupportedAlgorithm, "algorithm: %s", *alg)
	}
	km, err := a.keyManager()
	if err != nil {
		return err
	}

	var bearer *dids.BearerDID
	switch *method {
	case didjwk.Method:
		bearer, err = didjwk.Create(km, algorithm)
	case didkey.Method:
		bearer, err = didkey.Create(km, algorithm)
	case didweb.Method:
		if *origin == "" {
			return errors.New("did:web requires -origin")
		}
		bearer, err = didweb.Create(km, *origin, algorithm)
	default:
		return errors.Errorf("cannot create DIDs of method %s", *method)
	}
	if err != nil {
		return errors.Wrapf(err, "creating did:%s", *method)
	}
	logrus.Infof("created %s", bearer.URI)

	portable, err := bearer.ToPortableDID()
	if err != nil {
		return err
	}
	return a.write(portable)
}

func (a *app) resolveDID(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tbdex did resolve <did>")
	}
	result := a.registry.Resolve(ctx, args[0])
	if err := a.write(result); err != nil {
		return err
	}
	return result.Err()
}

func (a *app) sign(args []string) error {
	flags := flag.NewFlagSet("sign", flag.ContinueOnError)
	didPath := flags.String("did", "", "path to a portable DID")
	selector := flags.String("key", "", "verification method id or fragment to sign with")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *didPath == "" {
		return errors.New("sign requires -did")
	}

	portableBytes, err := os.ReadFile(*didPath)
	if err != nil {
		return errors.Wrap(err, "reading portable DID")
	}
	var portable dids.PortableDID
	if err = json.Unmarshal(portableBytes, &portable); err != nil {
		return errors.Wrap(err, "decoding portable DID")
	}
	km, err := a.keyManager()
	if err != nil {
		return err
	}
	bearer, err := dids.FromPortableDID(portable, km)
	if err != nil {
		return err
	}

	e, err := a.readEnvelope(flags.Args())
	if err != nil {
		return err
	}
	var keyAlias []string
	if *selector != "" {
		keyAlias = append(keyAlias, *selector)
	}
	if err = e.Sign(bearer, keyAlias...); err != nil {
		return err
	}
	return a.write(e.value())
}

type verification struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	From     string `json:"from"`
	Verified bool   `json:"verified"`
}

func (a *app) verify(ctx context.Context, args []string) error {
	e, err := a.readEnvelope(args)
	if err != nil {
		return err
	}
	if err = e.Validate(); err != nil {
		return err
	}
	verified, err := e.Verify(ctx, a.registry)
	if err != nil {
		return err
	}
	id, kind, from := e.header()
	if err = a.write(verification{ID: id, Kind: kind, From: from, Verified: verified}); err != nil {
		return err
	}
	if !verified {
		return errors.Wrapf(tbdex.ErrInvalidSignature, "%s %s", kind, id)
	}
	return nil
}

func (a *app) digest(args []string) error {
	e, err := a.readEnvelope(args)
	if err != nil {
		return err
	}
	digest, err := e.Digest()
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, hex.EncodeToString(digest)+"\n")
	return err
}

func (a *app) readEnvelope(args []string) (envelope, error) {
	var raw []byte
	var err error
	switch len(args) {
	case 0:
		raw, err = io.ReadAll(a.in)
	case 1:
		raw, err = os.ReadFile(args[0])
	default:
		return nil, errors.New("expected at most one input file")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading input")
	}
	return parseEnvelope(bytes.TrimSpace(raw))
}

func (a *app) write(v any) error {
	var (
		out []byte
		err error
	)
	if f, ok := a.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrap(err, "encoding output")
	}
	_, err = a.out.Write(append(out, '\n'))
	return err
}
