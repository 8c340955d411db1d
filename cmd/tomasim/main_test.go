package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// hexImage renders words as a hex image loaded at address 0.
func hexImage(words ...uint32) string {
	var sb strings.Builder
	sb.WriteString("@00000000\n")
	for i, b := range insts.BuildProgram(words...) {
		fmt.Fprintf(&sb, "%02X", b)
		if i%4 == 3 {
			sb.WriteString("\n")
		} else {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// sum of 1..10 through a predicted backward branch.
var loopWords = []uint32{
	insts.EncodeADDI(5, 0, 10),
	insts.EncodeADDI(10, 0, 0),
	insts.EncodeADD(10, 10, 5),
	insts.EncodeADDI(5, 5, -1),
	insts.EncodeBNE(5, 0, -8),
	insts.EncodeHalt(),
}

var _ = Describe("tomasim", func() {
	var (
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	)

	BeforeEach(func() {
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	runImage := func(image string, opts options) (int64, error) {
		return run("-", opts, strings.NewReader(image), stdout, stderr)
	}

	It("should run a hex image from stdin", func() {
		exit, err := runImage(hexImage(loopWords...), options{})

		Expect(err).NotTo(HaveOccurred())
		Expect(exit).To(Equal(int64(55)))
	})

	It("should run a hex image from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "loop.data")
		Expect(os.WriteFile(path, []byte(hexImage(loopWords...)), 0o644)).To(Succeed())

		exit, err := run(path, options{}, nil, stdout, stderr)

		Expect(err).NotTo(HaveOccurred())
		Expect(exit).To(Equal(int64(55)))
	})

	It("should agree across execution modes", func() {
		for _, opts := range []options{
			{verify: true},
			{engine: true},
			{emulate: true},
			{dcache: true, verify: true},
		} {
			exit, err := runImage(hexImage(loopWords...), opts)
			Expect(err).NotTo(HaveOccurred(), "options %+v", opts)
			Expect(exit).To(Equal(int64(55)), "options %+v", opts)
		}
	})

	It("should print statistics", func() {
		_, err := runImage(hexImage(loopWords...), options{stats: true, dcache: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring("Total Instructions: 32"))
		Expect(stderr.String()).To(ContainSubstring("Branches:       10"))
		Expect(stderr.String()).To(ContainSubstring("L1 Data Cache:"))
	})

	It("should log squashes when verbose", func() {
		_, err := runImage(hexImage(loopWords...), options{verbosity: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring(`"msg"="squash"`))
		Expect(stderr.String()).NotTo(ContainSubstring(`"msg"="commit"`))
	})

	It("should log commits when very verbose", func() {
		_, err := runImage(hexImage(loopWords...), options{verbosity: 2})

		Expect(err).NotTo(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring(`"msg"="commit"`))
	})

	It("should write a state dump", func() {
		path := filepath.Join(GinkgoT().TempDir(), "state.dot")

		_, err := runImage(hexImage(loopWords...), options{dumpPath: path})

		Expect(err).NotTo(HaveOccurred())
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("digraph"))
	})

	It("should report malformed images", func() {
		_, err := runImage("@0000 ZZ", options{})

		Expect(err).To(MatchError(loader.ErrMalformedImage))
	})

	It("should report illegal instructions", func() {
		_, err := runImage(hexImage(insts.EncodeADDI(10, 0, 1), 0xFFFFFFFF), options{})

		Expect(err).To(MatchError(pipeline.ErrIllegalInstruction))
	})

	It("should report a missing timing config", func() {
		_, err := runImage(hexImage(loopWords...), options{configPath: "/nonexistent/timing.json"})

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to load timing config"))
	})

	It("should reject a timing config the core cannot build", func() {
		path := filepath.Join(GinkgoT().TempDir(), "timing.json")
		Expect(os.WriteFile(path, []byte(`{"rob_size": 300}`), 0644)).To(Succeed())

		code, err := runImage(hexImage(loopWords...), options{configPath: path})

		Expect(err).To(MatchError(latency.ErrInvalidConfig))
		Expect(err.Error()).To(ContainSubstring("rob_size"))
		Expect(code).To(Equal(int64(-1)))
	})

	Describe("stepping", func() {
		var c *core.Core

		BeforeEach(func() {
			prog, err := loader.Parse([]byte(hexImage(loopWords...)))
			Expect(err).NotTo(HaveOccurred())

			regFile, memory := install(prog)
			c = core.NewCore(regFile, memory)
			c.SetPC(prog.EntryPoint)
		})

		It("should advance one cycle per key and continue on c", func() {
			exit, err := stepWith(c, strings.NewReader("  \nc"), stdout)

			Expect(err).NotTo(HaveOccurred())
			Expect(exit).To(Equal(int64(55)))
			Expect(strings.Count(stdout.String(), "cycle ")).To(Equal(3))
			Expect(stdout.String()).To(HavePrefix("cycle 1 "))
		})

		It("should ignore other keys", func() {
			_, err := stepWith(c, strings.NewReader("xyz q"), stdout)

			Expect(err).To(MatchError(errStepAborted))
			Expect(strings.Count(stdout.String(), "cycle ")).To(Equal(1))
		})

		It("should stop when input ends", func() {
			_, err := stepWith(c, strings.NewReader(""), stdout)

			Expect(err).To(MatchError(errStepAborted))
			Expect(c.Halted()).To(BeFalse())
		})
	})

	It("should verify against the reference emulator", func() {
		prog, err := loader.Parse([]byte(hexImage(loopWords...)))
		Expect(err).NotTo(HaveOccurred())

		regFile, memory := install(prog)
		c := core.NewCore(regFile, memory)
		c.SetPC(prog.EntryPoint)
		exit, err := c.Run()
		Expect(err).NotTo(HaveOccurred())

		Expect(verifyRun(prog, exit, regFile, memory)).To(Succeed())

		regFile.WriteReg(5, 99)
		Expect(verifyRun(prog, exit, regFile, memory)).To(MatchError(ContainSubstring("x5")))

		regFile.WriteReg(5, 0)
		Expect(verifyRun(prog, exit, regFile, emu.NewMemory())).To(MatchError(ContainSubstring("memory")))
	})
})
