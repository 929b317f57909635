//go:build e2e

package e2e

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func scenarioS3Tests() {
	It("runs a task DAG with each task exactly once, in dependency order", func() {
		dir, err := testExec.ProjectDir("s3")
		Expect(err).NotTo(HaveOccurred())

		cfg := "[tasks.build]\n" +
			"run = \"echo build\"\n" +
			"[tasks.test]\n" +
			"depends = [\"build\"]\n" +
			"run = \"echo test\"\n" +
			"[tasks.lint]\n" +
			"run = \"echo lint\"\n" +
			"[tasks.ci]\n" +
			"depends = [\"test\", \"lint\"]\n" +
			"depends_post = [\"cleanup\"]\n" +
			"[tasks.cleanup]\n" +
			"run = \"echo cleanup\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "mise.toml"), []byte(cfg), 0o644)).To(Succeed())

		_, err = testExec.ExecIn(dir, "rung", "--yes", "trust")
		Expect(err).NotTo(HaveOccurred())

		output, err := testExec.ExecIn(dir, "rung", "run", "--jobs", "2", "ci")
		Expect(err).NotTo(HaveOccurred())

		for _, want := range []string{"build", "test", "lint", "cleanup"} {
			Expect(strings.Count(output, want)).To(Equal(1), "expected exactly one run of %q, got output:\n%s", want, output)
		}

		buildIdx := strings.Index(output, "build")
		testIdx := strings.Index(output, "test")
		cleanupIdx := strings.Index(output, "cleanup")
		Expect(buildIdx).To(BeNumerically("<", testIdx), "build must finish before test starts")
		Expect(testIdx).To(BeNumerically("<", cleanupIdx), "cleanup (depends_post of ci) must start after test/lint")
	})
}
