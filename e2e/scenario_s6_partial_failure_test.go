//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS6Tests() {
	It("runs every independent root task under --continue-on-error and exits with the failing task's code", func() {
		dir, err := testExec.ProjectDir("s6")
		Expect(err).NotTo(HaveOccurred())

		cfg := "[tasks.a]\n" +
			"run = \"echo ran-a\"\n" +
			"[tasks.b]\n" +
			"run = \"echo ran-b && exit 2\"\n" +
			"[tasks.c]\n" +
			"run = \"echo ran-c\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte(cfg), 0o644)).To(Succeed())

		_, err = testExec.ExecIn(dir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())

		output, runErr := testExec.ExecIn(dir, "rung", "run", "--jobs", "3", "--continue-on-error", "a", "b", "c")
		Expect(runErr).To(HaveOccurred())

		Expect(output).To(ContainSubstring("ran-a"))
		Expect(output).To(ContainSubstring("ran-b"))
		Expect(output).To(ContainSubstring("ran-c"))
		Expect(output).To(ContainSubstring("b"))

		var exitErr *exec.ExitError
		Expect(runErr).To(BeAssignableToTypeOf(exitErr))
		Expect(runErr.(*exec.ExitError).ExitCode()).To(Equal(2))
	})
}
