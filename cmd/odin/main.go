// Command odin is the ODIN protocol CLI: key management, canonical
// encoding, content ids, proof envelopes, and HTTP request signatures.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/envelope"
	"odinprotocol.io/odin/httpsig"
	"odinprotocol.io/odin/jwks"
	"odinprotocol.io/odin/keys"
	"odinprotocol.io/odin/omlc"
	"odinprotocol.io/odin/ope"
	"odinprotocol.io/odin/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "encode":
		return cmdEncode(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "wrap":
		return cmdWrap(args[1:], out, errOut)
	case "http-sign":
		return cmdHTTPSign(args[1:], out, errOut)
	case "http-verify":
		return cmdHTTPVerify(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "odin: ODIN protocol CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  odin key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  odin key derive --from <name> --service <service> [--force]")
	fmt.Fprintln(w, "  odin key list")
	fmt.Fprintln(w, "  odin key jwks [<name> ...]")
	fmt.Fprintln(w, "  odin encode <message.json>")
	fmt.Fprintln(w, "  odin cid <file>")
	fmt.Fprintln(w, "  odin sign --signer <name> [--content-id] <file>")
	fmt.Fprintln(w, "  odin verify --proof <ope.json> [--jwks <jwks.json>] [--expect-cid <cid>] <file>")
	fmt.Fprintln(w, "  odin verify --portable <envelope.json> [--jwks <jwks.json>] [<file>]")
	fmt.Fprintln(w, "  odin wrap --proof <ope.json> [--jwks-url <url>] [--inline-content] <file>")
	fmt.Fprintln(w, "  odin http-sign --signer <name> --method <M> --path <p> [--body <file>]")
	fmt.Fprintln(w, "  odin http-verify --header <value> --method <M> --path <p> --jwks <jwks.json> [--body <file>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.odin/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - encode reads JSON and writes canonical OML-C bytes to stdout")
	fmt.Fprintln(w, "  - verify exits 0 on ok, 1 with the reason code on stderr otherwise")
	fmt.Fprintln(w, "  - http signatures carry a timestamp but no replay window; bounding")
	fmt.Fprintln(w, "    replay is the receiving service's policy")
}

func openKeystore(errOut io.Writer) (*keys.Keystore, bool) {
	ks, err := keys.Open(os.Getenv("ODIN_KEYS_DIR"))
	if err != nil {
		fmt.Fprintf(errOut, "open keystore: %v\n", err)
		return nil, false
	}
	return ks, true
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: odin key <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, derive, list, jwks")
		return 2
	}
	ks, ok := openKeystore(errOut)
	if !ok {
		return 1
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, seedHex string
		var force bool
		fs.StringVar(&name, "name", "", "Key name (doubles as the key id)")
		fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed (64 hex chars)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "usage: odin key init --name <name> [--seed-hex <64hex>] [--force]")
			return 2
		}
		var pub []byte
		var err error
		if seedHex != "" {
			seed, serr := keys.ParseSeedHex(seedHex)
			if serr != nil {
				fmt.Fprintf(errOut, "bad --seed-hex: %v\n", serr)
				return 1
			}
			pub, err = ks.Import(name, seed, force)
		} else {
			pub, err = ks.Generate(name, force)
		}
		if err != nil {
			fmt.Fprintf(errOut, "init key: %v\n", err)
			return 1
		}
		fp, _ := keys.Fingerprint(pub)
		fmt.Fprintf(out, "%s %s\n", name, fp)
		return 0

	case "derive":
		fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var from, service string
		var force bool
		fs.StringVar(&from, "from", "", "Root key name")
		fs.StringVar(&service, "service", "", "Service name")
		fs.BoolVar(&force, "force", false, "Overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if from == "" || service == "" {
			fmt.Fprintln(errOut, "usage: odin key derive --from <name> --service <service> [--force]")
			return 2
		}
		pub, err := ks.DeriveService(from, service, force)
		if err != nil {
			fmt.Fprintf(errOut, "derive key: %v\n", err)
			return 1
		}
		fp, _ := keys.Fingerprint(pub)
		fmt.Fprintf(out, "%s-%s %s\n", from, service, fp)
		return 0

	case "list":
		names, err := ks.List()
		if err != nil {
			fmt.Fprintf(errOut, "list keys: %v\n", err)
			return 1
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return 0

	case "jwks":
		doc, err := ks.ExportJWKS(args[1:]...)
		if err != nil {
			fmt.Fprintf(errOut, "export jwks: %v\n", err)
			return 1
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			fmt.Fprintf(errOut, "marshal jwks: %v\n", err)
			return 1
		}
		fmt.Fprintln(out, string(raw))
		return 0

	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdEncode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: odin encode <message.json>")
		return 2
	}
	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read message: %v\n", err)
		return 1
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintf(errOut, "parse message: %v\n", err)
		return 1
	}
	b, err := omlc.Encode(v)
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	if _, err := out.Write(b); err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: odin cid <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read file: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, cidutil.Sum(b))
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer string
	var withCID bool
	fs.StringVar(&signer, "signer", "", "Keystore key name")
	fs.BoolVar(&withCID, "content-id", true, "Bind the content CID into the envelope")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if signer == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: odin sign --signer <name> [--content-id] <file>")
		return 2
	}

	ks, ok := openKeystore(errOut)
	if !ok {
		return 1
	}
	priv, err := ks.Signer(signer)
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 1
	}
	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read content: %v\n", err)
		return 1
	}

	opts := ope.SignOptions{}
	if withCID {
		opts.ContentID = cidutil.Sum(content)
	}
	env, err := ope.Sign(priv, signer, content, opts)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	raw, err := env.Marshal()
	if err != nil {
		fmt.Fprintf(errOut, "marshal envelope: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(raw))
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var proofPath, portablePath, jwksPath, expectCID string
	fs.StringVar(&proofPath, "proof", "", "OPE JSON file")
	fs.StringVar(&portablePath, "portable", "", "Portable envelope JSON file")
	fs.StringVar(&jwksPath, "jwks", "", "JWKS document for independent key resolution")
	fs.StringVar(&expectCID, "expect-cid", "", "Expected content id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts := verify.Options{ExpectedCID: expectCID}
	if jwksPath != "" {
		raw, err := os.ReadFile(jwksPath)
		if err != nil {
			fmt.Fprintf(errOut, "read jwks: %v\n", err)
			return 1
		}
		doc, err := jwks.ParseDocument(raw)
		if err != nil {
			fmt.Fprintf(errOut, "parse jwks: %v\n", err)
			return 1
		}
		opts.JWKS = doc
	}

	var input verify.Input
	switch {
	case proofPath != "":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: odin verify --proof <ope.json> [--jwks <jwks.json>] <file>")
			return 2
		}
		raw, err := os.ReadFile(proofPath)
		if err != nil {
			fmt.Fprintf(errOut, "read proof: %v\n", err)
			return 1
		}
		proof, err := ope.Unmarshal(raw)
		if err != nil {
			fmt.Fprintf(errOut, "parse proof: %v\n", err)
			return 1
		}
		content, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read content: %v\n", err)
			return 1
		}
		input = verify.RawParts{Content: content, Proof: proof}

	case portablePath != "":
		raw, err := os.ReadFile(portablePath)
		if err != nil {
			fmt.Fprintf(errOut, "read envelope: %v\n", err)
			return 1
		}
		p, err := envelope.Unmarshal(raw)
		if err != nil {
			fmt.Fprintf(errOut, "parse envelope: %v\n", err)
			return 1
		}
		in := verify.PortableInput{Envelope: p}
		if fs.NArg() == 1 {
			content, err := os.ReadFile(fs.Arg(0))
			if err != nil {
				fmt.Fprintf(errOut, "read content: %v\n", err)
				return 1
			}
			in.Content = content
		}
		opts.Resolver = jwks.NewResolver(jwks.Options{})
		input = in

	default:
		fmt.Fprintln(errOut, "verify requires --proof or --portable")
		return 2
	}

	res := verify.Verify(context.Background(), input, opts)
	if !res.OK {
		fmt.Fprintf(errOut, "verification failed: %s (%s)\n", res.Reason, res.Detail)
		return 1
	}
	trust := "self-declared key"
	if res.UsedJWKS {
		trust = "key resolved as " + res.ResolvedKeyID
	}
	fmt.Fprintf(out, "OK cid=%s (%s)\n", res.ComputedCID, trust)
	return 0
}

func cmdWrap(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("wrap", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var proofPath, jwksURL string
	var inlineContent bool
	fs.StringVar(&proofPath, "proof", "", "OPE JSON file")
	fs.StringVar(&jwksURL, "jwks-url", "", "JWKS URL hint for verifiers")
	fs.BoolVar(&inlineContent, "inline-content", false, "Embed a copy of the content")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if proofPath == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: odin wrap --proof <ope.json> [--jwks-url <url>] [--inline-content] <file>")
		return 2
	}

	proofJSON, err := os.ReadFile(proofPath)
	if err != nil {
		fmt.Fprintf(errOut, "read proof: %v\n", err)
		return 1
	}
	proof, err := ope.Unmarshal(proofJSON)
	if err != nil {
		fmt.Fprintf(errOut, "parse proof: %v\n", err)
		return 1
	}
	content, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read content: %v\n", err)
		return 1
	}

	envOpts := envelope.Options{JWKSURL: jwksURL}
	if inlineContent {
		envOpts.Content = content
	}
	p, err := envelope.FromProofJSON(cidutil.Sum(content), proof.KeyID, proofJSON, envOpts)
	if err != nil {
		fmt.Fprintf(errOut, "wrap: %v\n", err)
		return 1
	}
	raw, err := p.Marshal()
	if err != nil {
		fmt.Fprintf(errOut, "marshal envelope: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(raw))
	return 0
}

func cmdHTTPSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("http-sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signer, method, path, bodyPath string
	fs.StringVar(&signer, "signer", "", "Keystore key name")
	fs.StringVar(&method, "method", "", "HTTP method")
	fs.StringVar(&path, "path", "", "Request path")
	fs.StringVar(&bodyPath, "body", "", "Body file (empty body when omitted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if signer == "" || method == "" || path == "" {
		fmt.Fprintln(errOut, "usage: odin http-sign --signer <name> --method <M> --path <p> [--body <file>]")
		return 2
	}

	ks, ok := openKeystore(errOut)
	if !ok {
		return 1
	}
	priv, err := ks.Signer(signer)
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 1
	}
	var body []byte
	if bodyPath != "" {
		body, err = os.ReadFile(bodyPath)
		if err != nil {
			fmt.Fprintf(errOut, "read body: %v\n", err)
			return 1
		}
	}

	header, err := httpsig.Sign(priv, signer, method, path, body, httpsig.SignOptions{})
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, header)
	return 0
}

func cmdHTTPVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("http-verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var header, method, path, bodyPath, jwksPath string
	var maxSkew time.Duration
	fs.StringVar(&header, "header", "", "Signature header value")
	fs.StringVar(&method, "method", "", "HTTP method")
	fs.StringVar(&path, "path", "", "Request path")
	fs.StringVar(&bodyPath, "body", "", "Body file (empty body when omitted)")
	fs.StringVar(&jwksPath, "jwks", "", "JWKS document")
	fs.DurationVar(&maxSkew, "max-skew", 0, "Replay window (0 disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if header == "" || method == "" || path == "" || jwksPath == "" {
		fmt.Fprintln(errOut, "usage: odin http-verify --header <value> --method <M> --path <p> --jwks <jwks.json> [--body <file>]")
		return 2
	}

	raw, err := os.ReadFile(jwksPath)
	if err != nil {
		fmt.Fprintf(errOut, "read jwks: %v\n", err)
		return 1
	}
	doc, err := jwks.ParseDocument(raw)
	if err != nil {
		fmt.Fprintf(errOut, "parse jwks: %v\n", err)
		return 1
	}
	var body []byte
	if bodyPath != "" {
		body, err = os.ReadFile(bodyPath)
		if err != nil {
			fmt.Fprintf(errOut, "read body: %v\n", err)
			return 1
		}
	}

	res := httpsig.Verify(header, method, path, body, jwks.DocumentKeyfunc(doc), httpsig.VerifyOptions{MaxSkew: maxSkew})
	if !res.OK {
		fmt.Fprintf(errOut, "verification failed: %s (%s)\n", res.Reason, res.Detail)
		return 1
	}
	fmt.Fprintln(out, "OK")
	return 0
}
