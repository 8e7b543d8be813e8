package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/otype/ot"
	"github.com/npillmayer/otype/otquery"
	"github.com/npillmayer/otype/otshape"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/bidi"
)

// tracer traces with key 'otype.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otype.fonts")
}

func main() {
	initDisplay()

	// set up logging
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{
		"tracing.adapter":   "go",
		"trace.otype.fonts": "Info",
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Printf("error configuring tracing")
		os.Exit(1)
	}
	tracing.SetTraceSelector(trace2go.Selector())

	// command line flags
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	fontname := flag.String("font", "", "Font to load")
	faceInx := flag.Int("face", 0, "Face index for font collections (*.ttc)")
	flag.Parse()
	tracer().SetTraceLevel(tracing.LevelError)    // will set the correct level later
	pterm.Info.Println("Welcome to OpenType CLI") // colored welcome message
	//
	// set up REPL
	repl, err := readline.New("ot > ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	intp := &Intp{repl: repl}
	//
	// load font to use
	if err := intp.loadFont(*fontname, *faceInx); err != nil { // font name provided by flag
		tracer().Errorf(err.Error())
		os.Exit(4)
	}
	//
	// start receiving commands
	pterm.Info.Println("Quit with <ctrl>D") // inform user how to stop the CLI
	switch *tlevel {
	case "Debug":
		tracer().SetTraceLevel(tracing.LevelDebug)
	case "Info":
		tracer().SetTraceLevel(tracing.LevelInfo)
	case "Error":
		tracer().SetTraceLevel(tracing.LevelError)
	default:
		tracer().Errorf("Invalid trace level: %s", *tlevel)
		os.Exit(5)
	}
	tracer().Infof("Trace level is %s", *tlevel)
	intp.REPL() // go into interactive mode
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " !  ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// Intp is our interpreter object
type Intp struct {
	face *otshape.Face
	repl *readline.Instance
}

func (intp *Intp) font() *ot.Font {
	if intp == nil || intp.face == nil {
		return nil
	}
	return intp.face.Font()
}

// REPL starts interactive mode.
func (intp *Intp) REPL() {
	for {
		line, err := intp.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		cmd, err := intp.parseCommand(line)
		if err != nil {
			tracer().Errorf(err.Error())
			continue
		}
		err, quit := intp.execute(cmd)
		if err != nil {
			tracer().Errorf(err.Error())
			continue
		}
		if quit {
			break
		}
	}
	pterm.Info.Println("Good bye!")
}

type Op struct {
	code int
	arg  string
}

const NOOP = -1
const (
	// op-code QUIT will not have an argument
	QUIT int = iota
	// op-codes below may have arguments
	HELP
	TABLES
	INFO
	MAP
	METRICS
	CLASS
	SCRIPTS
	FEATURES
	LOOKUPS
	SHAPE
)

var opMap = map[string]int{
	"quit":     QUIT,
	"help":     HELP,
	"tables":   TABLES,
	"info":     INFO,
	"map":      MAP,
	"metrics":  METRICS,
	"class":    CLASS,
	"scripts":  SCRIPTS,
	"features": FEATURES,
	"lookups":  LOOKUPS,
	"shape":    SHAPE,
}

var opHelp = []string{
	"quit               leave the CLI",
	"help               this message",
	"tables             list the font's tables",
	"info               name table summary and global metrics",
	"map <char>         look up the glyph for a character",
	"metrics <glyph>    metrics for a glyph index",
	"class <glyph>      GDEF class of a glyph index",
	"scripts            script tags declared by GSUB/GPOS",
	"features           feature tags declared by GSUB/GPOS",
	"lookups            lookup inventory of GSUB and GPOS",
	"shape <text>       shape text with the default features",
}

func (intp *Intp) parseCommand(line string) (*Op, error) {
	verb, arg, _ := strings.Cut(line, " ")
	code, ok := opMap[strings.ToLower(verb)]
	if !ok {
		code = HELP
	}
	return &Op{code: code, arg: strings.TrimSpace(arg)}, nil
}

var commandFn = map[int]func(*Intp, *Op) (error, bool){
	QUIT:     quitOp,
	HELP:     helpOp,
	TABLES:   tablesOp,
	INFO:     infoOp,
	MAP:      mapOp,
	METRICS:  metricsOp,
	CLASS:    classOp,
	SCRIPTS:  scriptsOp,
	FEATURES: featuresOp,
	LOOKUPS:  lookupsOp,
	SHAPE:    shapeOp,
}

func (intp *Intp) execute(op *Op) (err error, stop bool) {
	tracer().Debugf("cmd = %v", op)
	f, ok := commandFn[op.code]
	if !ok {
		pterm.Error.Printf("unknown command code: %d\n", op.code)
		return nil, false
	}
	err, stop = f(intp, op)
	if err != nil {
		pterm.Error.Println(err)
		err = nil
	}
	return
}

func quitOp(intp *Intp, op *Op) (error, bool) {
	pterm.Println("Goodbye!")
	return nil, true
}

func helpOp(intp *Intp, op *Op) (error, bool) {
	for _, line := range opHelp {
		pterm.Println(line)
	}
	return nil, false
}

func tablesOp(intp *Intp, op *Op) (error, bool) {
	otf := intp.font()
	pterm.Printf("font tables: %v\n", otf.TableTags())
	return nil, false
}

func infoOp(intp *Intp, op *Op) (error, bool) {
	otf := intp.font()
	info := otquery.InfoOf(otf)
	pterm.Printf("family:     %s\n", info.Family)
	pterm.Printf("subfamily:  %s\n", info.Subfamily)
	pterm.Printf("full name:  %s\n", info.FullName)
	pterm.Printf("version:    %s\n", info.Version)
	m := otquery.FontMetrics(otf)
	pterm.Printf("units/em=%d  ascent=%d  descent=%d  linegap=%d\n",
		m.UnitsPerEm, m.Ascent, m.Descent, m.LineGap)
	return nil, false
}

func mapOp(intp *Intp, op *Op) (error, bool) {
	arg, ok := op.hasArg()
	if !ok {
		return errors.New("map needs a character argument"), false
	}
	r := []rune(arg)[0]
	gid := otquery.GlyphIndex(intp.font(), r)
	pterm.Printf("'%c' (U+%04X) -> glyph %d\n", r, r, gid)
	return nil, false
}

func metricsOp(intp *Intp, op *Op) (error, bool) {
	gid, err := op.glyphArg()
	if err != nil {
		return err, false
	}
	m := otquery.GlyphMetrics(intp.font(), gid)
	pterm.Printf("glyph %d: advance=%d lsb=%d rsb=%d\n", gid, m.Advance, m.LSB, m.RSB)
	if !m.BBox.IsEmpty() {
		pterm.Printf("  bbox (%d,%d)-(%d,%d)\n", m.BBox.MinX, m.BBox.MinY, m.BBox.MaxX, m.BBox.MaxY)
	}
	return nil, false
}

func classOp(intp *Intp, op *Op) (error, bool) {
	gid, err := op.glyphArg()
	if err != nil {
		return err, false
	}
	classes := []string{"none", "base", "ligature", "mark", "component"}
	clz := otquery.GlyphClass(intp.font(), gid)
	name := "?"
	if clz >= 0 && clz < len(classes) {
		name = classes[clz]
	}
	pterm.Printf("glyph %d has class %d (%s)\n", gid, clz, name)
	return nil, false
}

func scriptsOp(intp *Intp, op *Op) (error, bool) {
	pterm.Printf("scripts: %v\n", otquery.SupportedScripts(intp.font()))
	return nil, false
}

func featuresOp(intp *Intp, op *Op) (error, bool) {
	pterm.Printf("features: %v\n", otquery.SupportedFeatures(intp.font()))
	return nil, false
}

func lookupsOp(intp *Intp, op *Op) (error, bool) {
	otf := intp.font()
	if gsub := otf.Layout.GSub; gsub != nil {
		pterm.Printf("GSUB has %d lookups\n", len(gsub.Lookups))
		for i, l := range gsub.Lookups {
			pterm.Printf("  [%2d] type=%d flag=%04x subtables=%d\n", i, l.Type, uint16(l.Flag), len(l.Subtables))
		}
	}
	if gpos := otf.Layout.GPos; gpos != nil {
		pterm.Printf("GPOS has %d lookups\n", len(gpos.Lookups))
		for i, l := range gpos.Lookups {
			pterm.Printf("  [%2d] type=%d flag=%04x subtables=%d\n", i, l.Type, uint16(l.Flag), len(l.Subtables))
		}
	}
	return nil, false
}

func shapeOp(intp *Intp, op *Op) (error, bool) {
	text, ok := op.hasArg()
	if !ok {
		return errors.New("shape needs a text argument"), false
	}
	params := otshape.Params{
		Script:    language.MustParseScript("Latn"),
		Direction: bidi.LeftToRight,
	}
	runes, glyphs, err := intp.face.Scale(10, 72).Shape(text, params)
	if err != nil {
		return err, false
	}
	pterm.Printf("%d runes -> %d glyphs\n", len(runes), len(glyphs))
	for _, g := range glyphs {
		pterm.Printf("  glyph %4d  advance=%.2f  offset=(%.2f,%.2f)\n",
			g.Glyph, g.Advance, g.OffsetX, g.OffsetY)
	}
	return nil, false
}

// --- Font Loading -----------------------------------------------------

func (intp *Intp) loadFont(fontname string, faceInx int) (err error) {
	if fontname == "" {
		return errors.New("no font given, use -font")
	}
	if faceInx > 0 {
		fbytes, rerr := os.ReadFile(fontname)
		if rerr != nil {
			return rerr
		}
		intp.face, err = otshape.ParseCollection(fbytes, faceInx)
	} else {
		intp.face, err = otshape.Open(fontname)
	}
	if err != nil {
		tracer().Errorf("cannot load font %s: %s", fontname, err)
		return err
	}
	tracer().Infof("loaded font = %s", intp.face.Fontname())
	pterm.Printf("font tables: %v\n", intp.face.Font().TableTags())
	return nil
}

// ----------------------------------------------------------------------

func (op *Op) hasArg() (string, bool) {
	if op.arg == "" {
		return "", false
	}
	return op.arg, true
}

func (op *Op) glyphArg() (ot.GlyphIndex, error) {
	arg, ok := op.hasArg()
	if !ok {
		return 0, errors.New("command needs a glyph index argument")
	}
	n, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("not a glyph index: %q", arg)
	}
	return ot.GlyphIndex(n), nil
}
