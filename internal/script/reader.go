// Package script implements a text-script reader: it translates a
// script into ResponseManagerMap registrations and seeded Agenda
// telemetry, in one reader rather than several near-duplicate modes.
package script

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/execsim/simcore/internal/agenda"
	"github.com/execsim/simcore/internal/respval"
	"github.com/execsim/simcore/internal/response"
)

// symbolKind distinguishes a declared Command from a declared Lookup
// (telemetry) symbol.
type symbolKind int

const (
	unknownSymbol symbolKind = iota
	commandSymbol
	lookupSymbol
)

type symbol struct {
	name       string
	kind       symbolKind
	returnType string
}

// ParseError reports a script line a reader could not interpret,
// carrying the file name and line number.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Reader parses text scripts into a ResponseManagerMap and an Agenda,
// switching between command and telemetry mode as it goes and tracking
// declared symbol types along the way.
type Reader struct {
	managers *response.Map
	agenda   *agenda.Agenda
	symbols  map[string]symbol
}

// NewReader builds a ScriptReader that populates managers and agenda as
// it reads.
func NewReader(managers *response.Map, ag *agenda.Agenda) *Reader {
	return &Reader{
		managers: managers,
		agenda:   ag,
		symbols:  make(map[string]symbol),
	}
}

// ReadScript parses one script file. telemetry puts the reader into
// telemetry mode from the start (used for the legacy `-t` file);
// scripts that contain their own BEGIN_COMMANDS/BEGIN_TELEMETRY markers
// switch modes as they're encountered regardless of the initial value.
//
// A parse error stops reading immediately and is returned; partial
// registrations made before the error are not rolled back.
func (r *Reader) ReadScript(fileName string, src io.Reader, telemetry bool) error {
	compatibilityMode := telemetry

	scanner := bufio.NewScanner(src)
	lineNo := 0
	firstContentLine := true

	nextLine := func() (string, bool) {
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if r0 := []rune(trimmed)[0]; !isAlnum(r0) {
				continue
			}
			return line, true
		}
		return "", false
	}

	for {
		line, ok := nextLine()
		if !ok {
			break
		}
		fields := strings.Fields(line)
		firstWord := fields[0]

		switch {
		case firstWord == "BEGIN_TELEMETRY":
			telemetry = true
			compatibilityMode = true
			continue
		case firstWord == "BEGIN_COMMANDS":
			telemetry = false
			compatibilityMode = true
			continue
		}

		if compatibilityMode {
			if telemetry {
				if err := r.parseTelemetryEntry(fileName, lineNo, fields, nextLine, "real"); err != nil {
					return err
				}
			} else if err := r.parseCommandEntry(fileName, lineNo, fields, nextLine, "real"); err != nil {
				return err
			}
			continue
		}

		if typeName, isType := scalarTypeName(firstWord); isType {
			sym, err := r.parseDeclaration(fileName, lineNo, fields[1:], typeName)
			if err != nil {
				return err
			}
			if _, exists := r.symbols[sym.name]; exists {
				return &ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("symbol %q is already declared", sym.name)}
			}
			r.symbols[sym.name] = *sym
			continue
		}

		if firstWord == "Command" {
			sym, err := r.parseCommandDeclaration(fileName, lineNo, fields[1:], "")
			if err != nil {
				return err
			}
			if _, exists := r.symbols[sym.name]; exists {
				return &ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("symbol %q is already declared", sym.name)}
			}
			r.symbols[sym.name] = *sym
			continue
		}

		if len(r.symbols) == 0 && !telemetry && !compatibilityMode && firstContentLine {
			// Legacy positional script with no declarations at all:
			// presume the whole file is an old-style command script.
			compatibilityMode = true
			if err := r.parseCommandEntry(fileName, lineNo, fields, nextLine, "real"); err != nil {
				return err
			}
			firstContentLine = false
			continue
		}
		firstContentLine = false

		if sym, known := r.symbols[firstWord]; known {
			if sym.kind == lookupSymbol {
				if err := r.parseTelemetryEntry(fileName, lineNo, fields, nextLine, sym.returnType); err != nil {
					return err
				}
			} else if err := r.parseCommandEntry(fileName, lineNo, fields, nextLine, sym.returnType); err != nil {
				return err
			}
			continue
		}

		return &ParseError{File: fileName, Line: lineNo, Msg: fmt.Sprintf("format error; don't know how to interpret %q", firstWord)}
	}

	return scanner.Err()
}

// parseDeclaration handles `<typename> Command <name>` and
// `<typename> Lookup <name>` declaration lines; fields excludes the
// leading type-name token.
func (r *Reader) parseDeclaration(file string, line int, fields []string, typeName string) (*symbol, error) {
	if len(fields) < 1 {
		return nil, &ParseError{File: file, Line: line, Msg: "expected Command or Lookup after type name"}
	}
	switch fields[0] {
	case "Command":
		return r.parseCommandDeclaration(file, line, fields[1:], typeName)
	case "Lookup":
		if len(fields) < 2 {
			return nil, &ParseError{File: file, Line: line, Msg: "expected a name after Lookup"}
		}
		return &symbol{name: fields[1], kind: lookupSymbol, returnType: typeName}, nil
	default:
		return nil, &ParseError{File: file, Line: line, Msg: fmt.Sprintf("found %q, expected Command or Lookup", fields[0])}
	}
}

func (r *Reader) parseCommandDeclaration(file string, line int, fields []string, typeName string) (*symbol, error) {
	if len(fields) < 1 {
		return nil, &ParseError{File: file, Line: line, Msg: "expected a name after Command"}
	}
	return &symbol{name: fields[0], kind: commandSymbol, returnType: typeName}, nil
}

// parseCommandEntry parses a two-line `<name> <index> <uses> <delay>` /
// `<literal...>` pair and registers the entry with the command's
// Manager. Return-value literals are parsed here by parseReturnLiteral;
// there is no separate pluggable response-factory type.
func (r *Reader) parseCommandEntry(file string, line int, fields []string, nextLine func() (string, bool), typeName string) error {
	if len(fields) < 4 {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in command header for %q", fields[0])}
	}
	name := fields[0]
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in command index for %q", name)}
	}
	uses, err := strconv.Atoi(fields[2])
	if err != nil {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in command number of responses for %q", name)}
	}
	delaySec, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in command response delay for %q", name)}
	}

	valueLine, ok := nextLine()
	if !ok {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("premature end of file reading return value for %q", name)}
	}
	val, err := parseReturnLiteral(typeName, valueLine)
	if err != nil {
		return &ParseError{File: file, Line: line + 1, Msg: err.Error()}
	}

	entry := response.NewEntry(name, val, secondsToDuration(delaySec), uses)
	mgr := r.managers.Ensure(name, nil)
	mgr.AddResponse(entry, index)
	return nil
}

// parseTelemetryEntry parses a two-line `<state-name> <delay>` /
// `<literal...>` pair, scheduled onto the Agenda's Epoch reference time
// for rebasing by Scheduler.Start. Like parseCommandEntry, it parses
// the literal itself through parseReturnLiteral.
func (r *Reader) parseTelemetryEntry(file string, line int, fields []string, nextLine func() (string, bool), typeName string) error {
	if len(fields) < 2 {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in telemetry header for %q", fields[0])}
	}
	name := fields[0]
	delaySec, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("parse error in telemetry delay for %q", name)}
	}

	valueLine, ok := nextLine()
	if !ok {
		return &ParseError{File: file, Line: line, Msg: fmt.Sprintf("premature end of file reading return value for %q", name)}
	}
	val, err := parseReturnLiteral(typeName, valueLine)
	if err != nil {
		return &ParseError{File: file, Line: line + 1, Msg: err.Error()}
	}

	due := agenda.Epoch.Add(secondsToDuration(delaySec))
	r.agenda.ScheduleResponse(due, agenda.Message{Name: name, Value: val, Kind: agenda.Telemetry})
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// parseReturnLiteral parses a return-value literal: a scalar type name
// parses the line's single token, an array type name parses every
// token on the line as one element each.
func parseReturnLiteral(typeName, line string) (respval.Value, error) {
	tokens := strings.Fields(line)
	switch typeName {
	case "BoolArray":
		return respval.ParseArray("bool", tokens)
	case "IntArray":
		return respval.ParseArray("int", tokens)
	case "RealArray":
		return respval.ParseArray("real", tokens)
	case "StringArray":
		return respval.ParseArray("string", tokens)
	default:
		if len(tokens) == 0 {
			return respval.Value{}, fmt.Errorf("missing return value literal")
		}
		return respval.ParseScalar(typeName, tokens[0])
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func scalarTypeName(word string) (string, bool) {
	switch word {
	case "bool", "boolean", "Bool", "Boolean",
		"int", "integer", "Int", "Integer",
		"real", "float", "double", "Real", "Float", "Double",
		"string", "String",
		"BoolArray", "IntArray", "RealArray", "StringArray":
		return word, true
	default:
		return "", false
	}
}
