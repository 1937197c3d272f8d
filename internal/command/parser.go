package command

import (
	"strconv"

	"github.com/kvsrv/kvsrv/internal/arena"
)

// maxOpcodeLen bounds the uppercase-folded opcode token; longer tokens
// are rejected as unknown rather than truncated.
const maxOpcodeLen = 31

const maxLineLen = 1 << 20 // 1 MiB hard cap on a single command line

// Parse tokenizes one request line (trailing newline already stripped by
// the caller) into a ParsedCommand. Unescaped quoted tokens are copied
// into a; the returned command's views alias a and line, and both must
// outlive the command.
func Parse(line []byte, a *arena.Arena) *ParsedCommand {
	cmd := &ParsedCommand{}

	if len(line) > maxLineLen {
		cmd.Err = &ParseError{Kind: ErrTooLarge, Message: ErrTooLarge.String()}
		return cmd
	}

	p := 0
	p = skipWS(line, p)
	if p >= len(line) {
		cmd.Err = &ParseError{Kind: ErrUnknownCommand, Message: ErrUnknownCommand.String()}
		return cmd
	}

	opStart := p
	for p < len(line) && !isSpace(line[p]) {
		p++
	}
	opTok := line[opStart:p]
	if len(opTok) == 0 || len(opTok) > maxOpcodeLen {
		cmd.Err = &ParseError{Kind: ErrUnknownCommand, Message: ErrUnknownCommand.String()}
		return cmd
	}

	upper := foldUpper(opTok)
	sp, ok := lookup(upper)
	if !ok {
		cmd.Err = &ParseError{Kind: ErrUnknownCommand, Message: ErrUnknownCommand.String()}
		return cmd
	}
	cmd.Opcode = sp.opcode

	for {
		p = skipWS(line, p)
		if p >= len(line) {
			break
		}
		if len(cmd.Args) >= MaxArgs {
			break
		}

		tok, next, perr := scanToken(line, p, a)
		if perr != nil {
			cmd.Err = perr
			return cmd
		}
		cmd.Args = append(cmd.Args, viewOf(tok))
		p = next
	}

	if sp.needsKey && len(cmd.Args) > 0 {
		cmd.Key = cmd.Args[0]
		cmd.HasKey = true
	}

	if len(cmd.Args) < sp.minArgs {
		cmd.Err = &ParseError{Kind: ErrTooFewArgs, Message: ErrTooFewArgs.String()}
		return cmd
	}
	if len(cmd.Args) > sp.maxArgs {
		cmd.Err = &ParseError{Kind: ErrTooManyArgs, Message: ErrTooManyArgs.String()}
		return cmd
	}

	if sp.numericArg >= 0 && sp.numericArg < len(cmd.Args) {
		n, err := strconv.ParseInt(cmd.Args[sp.numericArg].String(), 10, 64)
		if err != nil {
			cmd.Err = &ParseError{Kind: ErrInvalidInteger, Message: ErrInvalidInteger.String()}
			return cmd
		}
		cmd.Int1, cmd.HasInt1 = n, true
	}
	if sp.numericArg2 >= 0 && sp.numericArg2 < len(cmd.Args) {
		n, err := strconv.ParseInt(cmd.Args[sp.numericArg2].String(), 10, 64)
		if err != nil {
			cmd.Err = &ParseError{Kind: ErrInvalidInteger, Message: ErrInvalidInteger.String()}
			return cmd
		}
		cmd.Int2, cmd.HasInt2 = n, true
	}

	return cmd
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func skipWS(line []byte, p int) int {
	for p < len(line) && isSpace(line[p]) {
		p++
	}
	return p
}

// foldUpper uppercase-folds an ASCII token without allocating when it is
// already upper-case.
func foldUpper(tok []byte) string {
	needsFold := false
	for _, b := range tok {
		if b >= 'a' && b <= 'z' {
			needsFold = true
			break
		}
	}
	if !needsFold {
		return string(tok)
	}
	out := make([]byte, len(tok))
	for i, b := range tok {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// scanToken reads one bare or quoted token starting at p, returning the
// token bytes, the position after the token, and a parse error if any.
//
// Bare tokens are zero-copy slices of line. Quoted tokens contain
// backslash-unescaped bytes that differ from the input, so they are
// copied into a.
func scanToken(line []byte, p int, a *arena.Arena) ([]byte, int, *ParseError) {
	if line[p] == '"' || line[p] == '\'' {
		return scanQuoted(line, p, a)
	}
	start := p
	for p < len(line) && !isSpace(line[p]) {
		p++
	}
	return line[start:p], p, nil
}

func scanQuoted(line []byte, p int, a *arena.Arena) ([]byte, int, *ParseError) {
	quote := line[p]
	p++
	start := p

	// First pass: find the length needed and whether any escapes exist.
	hasEscape := false
	q := p
	for {
		if q >= len(line) {
			return nil, 0, &ParseError{Kind: ErrUnclosedQuote, Message: ErrUnclosedQuote.String()}
		}
		if line[q] == '\\' {
			hasEscape = true
			q += 2
			continue
		}
		if line[q] == quote {
			break
		}
		q++
	}
	end := q // position of closing quote

	if !hasEscape {
		tok := line[start:end]
		return tok, end + 1, nil
	}

	buf, err := a.Alloc(end - start)
	if err != nil {
		return nil, 0, &ParseError{Kind: ErrTooLarge, Message: ErrTooLarge.String()}
	}
	n := 0
	i := start
	for i < end {
		if line[i] == '\\' && i+1 < end {
			buf[n] = line[i+1]
			i += 2
		} else {
			buf[n] = line[i]
			i++
		}
		n++
	}
	return buf[:n], end + 1, nil
}
