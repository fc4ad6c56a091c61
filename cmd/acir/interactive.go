package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/acir-runtime/acir"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type argKind int

const (
	argFile argKind = iota
	argBool
	argUint
	argOutFile
)

type argSpec struct {
	name string
	kind argKind
}

type opSpec struct {
	name string
	desc string
	args []argSpec
	run  func(ctx context.Context, s *session, args []string) (string, error)
}

func argKindStr(k argKind) string {
	switch k {
	case argFile:
		return "path"
	case argBool:
		return "bool"
	case argUint:
		return "uint"
	case argOutFile:
		return "out path"
	}
	return "?"
}

// operations is the proving pipeline, one entry per composer operation,
// in the order a session normally runs them.
var operations = []opSpec{
	{
		name: "init-proving-key",
		desc: "build the proving key for a circuit",
		args: []argSpec{{"circuit", argFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			cs, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			if err := s.composer.InitProvingKey(ctx, cs); err != nil {
				return "", err
			}
			return "proving key ready", nil
		},
	},
	{
		name: "init-verification-key",
		desc: "derive the verification key from the proving key",
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			if err := s.composer.InitVerificationKey(ctx); err != nil {
				return "", err
			}
			return "verification key ready", nil
		},
	},
	{
		name: "load-verification-key",
		desc: "install a previously exported verification key",
		args: []argSpec{{"vk", argFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			vk, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			if err := s.composer.LoadVerificationKey(ctx, vk); err != nil {
				return "", err
			}
			return "verification key loaded", nil
		},
	},
	{
		name: "prove",
		desc: "prove a witness against a circuit",
		args: []argSpec{{"circuit", argFile}, {"witness", argFile}, {"recursive", argBool}, {"proof out", argOutFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			cs, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			witness, err := os.ReadFile(args[1])
			if err != nil {
				return "", err
			}
			proof, err := s.composer.CreateProof(ctx, cs, witness, parseBool(args[2]))
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(args[3], proof, 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d byte proof written to %s", len(proof), args[3]), nil
		},
	},
	{
		name: "verify",
		desc: "verify a proof",
		args: []argSpec{{"proof", argFile}, {"recursive", argBool}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			proof, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			ok, err := s.composer.VerifyProof(ctx, proof, parseBool(args[1]))
			if err != nil {
				return "", err
			}
			if !ok {
				return "invalid", nil
			}
			return "valid", nil
		},
	},
	{
		name: "write-vk",
		desc: "export the verification key",
		args: []argSpec{{"vk out", argOutFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			vk, err := s.composer.VerificationKey(ctx)
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(args[0], vk, 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d byte key written to %s", len(vk), args[0]), nil
		},
	},
	{
		name: "contract",
		desc: "emit the Solidity verifier",
		args: []argSpec{{"contract out", argOutFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			contract, err := s.composer.SolidityVerifier(ctx)
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(args[0], []byte(contract), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d byte contract written to %s", len(contract), args[0]), nil
		},
	},
	{
		name: "gates",
		desc: "report circuit sizes",
		args: []argSpec{{"circuit", argFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			cs, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			sizes, err := acir.GetCircuitSizes(ctx, s.backend, cs)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("exact %d, total %d, subgroup %d", sizes.Exact, sizes.Total, sizes.Subgroup), nil
		},
	},
	{
		name: "proof-fields",
		desc: "serialize a proof into field elements",
		args: []argSpec{{"proof", argFile}, {"public inputs", argUint}, {"fields out", argOutFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			proof, err := os.ReadFile(args[0])
			if err != nil {
				return "", err
			}
			n, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return "", fmt.Errorf("public inputs: %w", err)
			}
			fields, err := s.composer.ProofAsFields(ctx, proof, uint32(n))
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(args[2], fields, 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bytes written to %s", len(fields), args[2]), nil
		},
	},
	{
		name: "vk-fields",
		desc: "serialize the verification key into field elements",
		args: []argSpec{{"fields out", argOutFile}},
		run: func(ctx context.Context, s *session, args []string) (string, error) {
			fields, keyHash, err := s.composer.VerificationKeyAsFields(ctx)
			if err != nil {
				return "", err
			}
			if err := os.WriteFile(args[0], fields, 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d bytes written to %s, key hash %s",
				len(fields), args[0], hex.EncodeToString(keyHash)), nil
		},
	},
}

func parseBool(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	session  *session
	filename string
	result   string
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type loadedMsg struct {
	err     error
	session *session
}

type callResultMsg struct {
	err    error
	result string
}

func newInteractiveModel(filename string) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		state:    stateSelectOp,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadLibrary
}

func (m *interactiveModel) loadLibrary() tea.Msg {
	s, err := openSession(context.Background())
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{session: s}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.session != nil {
				m.session.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(operations)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.runOperation
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.runOperation

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	op := operations[m.selected]
	m.inputs = make([]textinput.Model, len(op.args))
	for i, a := range op.args {
		ti := textinput.New()
		ti.Placeholder = argKindStr(a.kind)
		ti.Prompt = a.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) runOperation() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("library not loaded")}
	}

	op := operations[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = input.Value()
	}

	result, err := op.run(context.Background(), m.session, args)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Loading library..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("ACIR Shell"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range operations {
			line := opStyle.Render(op.name) + "  " + helpStyle.Render(op.desc)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + op.name))
				b.WriteString("  " + helpStyle.Render(op.desc))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInputArgs:
		op := operations[m.selected]
		b.WriteString(fmt.Sprintf("Running %s\n\n", opStyle.Render(op.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(argKindStr(op.args[i].kind)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateShowResult:
		op := operations[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", opStyle.Render(op.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
