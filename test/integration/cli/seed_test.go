// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

//go:build integration

package cli_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const seedAdmins = `admins:
  - name: Root
    email: Root@Example.com
    password: correct horse battery
    title: Platform operator
    access_level: 10
`

var _ = Describe("Seed Command", func() {
	var (
		ctx      context.Context
		seedFile string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		seedFile = filepath.Join(GinkgoT().TempDir(), "admins.yaml")
		Expect(os.WriteFile(seedFile, []byte(seedAdmins), 0o600)).To(Succeed())
	})

	Describe("Admin seeding", func() {
		It("migrates and creates a verified admin", func() {
			output, err := mentorlik(ctx, "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "seed command failed: %s", output)
			Expect(output).To(ContainSubstring("Seeding complete: 1 created, 0 skipped"))

			var email string
			var verified bool
			var hash string
			err = env.pool.QueryRow(ctx,
				"SELECT email, email_verified, password_hash FROM admins",
			).Scan(&email, &verified, &hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(email).To(Equal("root@example.com"))
			Expect(verified).To(BeTrue())
			Expect(hash).To(HavePrefix("$argon2id$"))
		})

		It("is idempotent (running twice succeeds without duplicates)", func() {
			output1, err := mentorlik(ctx, "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "first seed failed: %s", output1)

			output2, err := mentorlik(ctx, "seed", "--file", seedFile)
			Expect(err).NotTo(HaveOccurred(), "second seed failed: %s", output2)
			Expect(output2).To(ContainSubstring("Seeding complete: 0 created, 1 skipped"))

			var count int
			err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM admins").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("Error handling", func() {
		It("fails with CONFIG_INVALID when DATABASE_URL is missing", func() {
			cmd := exec.CommandContext(ctx, "go", "run", ".", "seed", "--file", seedFile)
			cmd.Dir = "../../../cmd/mentorlik"

			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("DATABASE_URL"))
		})

		It("rejects a seed file that does not match the schema", func() {
			Expect(os.WriteFile(seedFile, []byte("admins:\n  - email: not-an-email\n"), 0o600)).To(Succeed())

			output, err := mentorlik(ctx, "seed", "--file", seedFile)
			Expect(err).To(HaveOccurred())
			Expect(output).To(ContainSubstring("/admins/0"))
		})
	})
})
