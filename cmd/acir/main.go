// Command acir drives the native proving library from the command line:
// proving, verification, key management, and the serialization surface,
// against a circuit and witness produced by an ACIR compiler.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/acir-runtime/acir"
	"github.com/wippyai/acir-runtime/engine"
)

var (
	libraryPath string
	memoryPages uint32
	verbose     bool
)

// errInvalidProof signals a structurally sound run whose proof did not
// verify. It travels up through Execute so deferred teardown still runs,
// and main maps it to the exit status without the error banner.
var errInvalidProof = errors.New("proof is invalid")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "acir",
		Short:         "ACIR proving toolchain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&libraryPath, "library", "l", "barretenberg.wasm", "path to the native library build")
	root.PersistentFlags().Uint32Var(&memoryPages, "memory-pages", 0, "memory limit in 64KB pages (0 = default)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log native diagnostics and lifecycle events")

	root.AddCommand(
		proveCmd(),
		verifyCmd(),
		writeVKCmd(),
		contractCmd(),
		gatesCmd(),
		proofFieldsCmd(),
		vkFieldsCmd(),
		shellCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalidProof) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// session bundles everything a subcommand needs to talk to the library.
type session struct {
	engine   *engine.Engine
	backend  *engine.Module
	composer *acir.Composer
	log      *zap.Logger
}

func openSession(ctx context.Context) (*session, error) {
	log := zap.NewNop()
	if verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	wasmBytes, err := os.ReadFile(libraryPath)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}

	eng, err := engine.NewWithConfig(ctx, &engine.Config{
		MemoryLimitPages: memoryPages,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	lib, err := eng.Load(ctx, wasmBytes)
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}

	instCfg := &engine.InstanceConfig{}
	if verbose {
		// proving progress goes to the library's stderr
		instCfg.Stderr = os.Stderr
	}
	backend, err := lib.InstantiateWithConfig(ctx, instCfg)
	if err != nil {
		eng.Close(ctx)
		return nil, err
	}

	composer, err := acir.New(ctx, backend, &acir.Config{Logger: log})
	if err != nil {
		backend.Close(ctx)
		eng.Close(ctx)
		return nil, err
	}

	return &session{engine: eng, backend: backend, composer: composer, log: log}, nil
}

func (s *session) Close(ctx context.Context) {
	s.composer.Close(ctx)
	s.backend.Close(ctx)
	s.engine.Close(ctx)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func proveCmd() *cobra.Command {
	var circuitPath, witnessPath, outPath string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Prove a witness against a circuit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cs, err := os.ReadFile(circuitPath)
			if err != nil {
				return fmt.Errorf("read circuit: %w", err)
			}
			witness, err := os.ReadFile(witnessPath)
			if err != nil {
				return fmt.Errorf("read witness: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.composer.InitProvingKey(ctx, cs); err != nil {
				return err
			}
			proof, err := s.composer.CreateProof(ctx, cs, witness, recursive)
			if err != nil {
				return err
			}
			return writeOutput(outPath, proof)
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.Flags().StringVarP(&witnessPath, "witness", "w", "", "serialized witness")
	cmd.Flags().StringVarP(&outPath, "out", "o", "proof", "output path (- for stdout)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "produce a recursion-friendly proof")
	cmd.MarkFlagRequired("circuit")
	cmd.MarkFlagRequired("witness")
	return cmd
}

func verifyCmd() *cobra.Command {
	var vkPath, proofPath string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof against a verification key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			vk, err := os.ReadFile(vkPath)
			if err != nil {
				return fmt.Errorf("read verification key: %w", err)
			}
			proof, err := os.ReadFile(proofPath)
			if err != nil {
				return fmt.Errorf("read proof: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.composer.LoadVerificationKey(ctx, vk); err != nil {
				return err
			}
			ok, err := s.composer.VerifyProof(ctx, proof, recursive)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("invalid")
				return errInvalidProof
			}
			fmt.Println("valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&vkPath, "vk", "k", "", "serialized verification key")
	cmd.Flags().StringVarP(&proofPath, "proof", "p", "", "proof to verify")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "proof uses the recursion-friendly encoding")
	cmd.MarkFlagRequired("vk")
	cmd.MarkFlagRequired("proof")
	return cmd
}

func writeVKCmd() *cobra.Command {
	var circuitPath, outPath string

	cmd := &cobra.Command{
		Use:   "write-vk",
		Short: "Derive and export the verification key for a circuit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cs, err := os.ReadFile(circuitPath)
			if err != nil {
				return fmt.Errorf("read circuit: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.composer.InitProvingKey(ctx, cs); err != nil {
				return err
			}
			vk, err := s.composer.VerificationKey(ctx)
			if err != nil {
				return err
			}
			return writeOutput(outPath, vk)
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.Flags().StringVarP(&outPath, "out", "o", "vk", "output path (- for stdout)")
	cmd.MarkFlagRequired("circuit")
	return cmd
}

func contractCmd() *cobra.Command {
	var circuitPath, vkPath, outPath string

	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Emit a Solidity verifier for a circuit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			switch {
			case vkPath != "":
				vk, err := os.ReadFile(vkPath)
				if err != nil {
					return fmt.Errorf("read verification key: %w", err)
				}
				if err := s.composer.LoadVerificationKey(ctx, vk); err != nil {
					return err
				}
			case circuitPath != "":
				cs, err := os.ReadFile(circuitPath)
				if err != nil {
					return fmt.Errorf("read circuit: %w", err)
				}
				if err := s.composer.InitProvingKey(ctx, cs); err != nil {
					return err
				}
				if err := s.composer.InitVerificationKey(ctx); err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --circuit or --vk is required")
			}

			contract, err := s.composer.SolidityVerifier(ctx)
			if err != nil {
				return err
			}
			return writeOutput(outPath, []byte(contract))
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.Flags().StringVarP(&vkPath, "vk", "k", "", "serialized verification key")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path (- for stdout)")
	return cmd
}

func gatesCmd() *cobra.Command {
	var circuitPath string

	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Report circuit sizes without building keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cs, err := os.ReadFile(circuitPath)
			if err != nil {
				return fmt.Errorf("read circuit: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			sizes, err := acir.GetCircuitSizes(ctx, s.backend, cs)
			if err != nil {
				return err
			}
			fmt.Printf("exact:    %d\n", sizes.Exact)
			fmt.Printf("total:    %d\n", sizes.Total)
			fmt.Printf("subgroup: %d\n", sizes.Subgroup)
			return nil
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.MarkFlagRequired("circuit")
	return cmd
}

func proofFieldsCmd() *cobra.Command {
	var circuitPath, proofPath, outPath string
	var publicInputs uint32

	cmd := &cobra.Command{
		Use:   "proof-fields",
		Short: "Serialize a proof into field elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cs, err := os.ReadFile(circuitPath)
			if err != nil {
				return fmt.Errorf("read circuit: %w", err)
			}
			proof, err := os.ReadFile(proofPath)
			if err != nil {
				return fmt.Errorf("read proof: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.composer.InitProvingKey(ctx, cs); err != nil {
				return err
			}
			if err := s.composer.InitVerificationKey(ctx); err != nil {
				return err
			}
			fields, err := s.composer.ProofAsFields(ctx, proof, publicInputs)
			if err != nil {
				return err
			}
			return writeOutput(outPath, fields)
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.Flags().StringVarP(&proofPath, "proof", "p", "", "proof to serialize")
	cmd.Flags().Uint32VarP(&publicInputs, "public-inputs", "n", 0, "number of public inputs in the proof")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path (- for stdout)")
	cmd.MarkFlagRequired("circuit")
	cmd.MarkFlagRequired("proof")
	return cmd
}

func vkFieldsCmd() *cobra.Command {
	var circuitPath, outPath string

	cmd := &cobra.Command{
		Use:   "vk-fields",
		Short: "Serialize the verification key into field elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cs, err := os.ReadFile(circuitPath)
			if err != nil {
				return fmt.Errorf("read circuit: %w", err)
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.composer.InitProvingKey(ctx, cs); err != nil {
				return err
			}
			if err := s.composer.InitVerificationKey(ctx); err != nil {
				return err
			}
			fields, keyHash, err := s.composer.VerificationKeyAsFields(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "key hash: %s\n", hex.EncodeToString(keyHash))
			return writeOutput(outPath, fields)
		},
	}
	cmd.Flags().StringVarP(&circuitPath, "circuit", "c", "", "serialized constraint system")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output path (- for stdout)")
	cmd.MarkFlagRequired("circuit")
	return cmd
}

func shellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive proving session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("shell requires a terminal")
			}
			return runInteractive(libraryPath)
		},
	}
	return cmd
}
