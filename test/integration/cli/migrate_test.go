// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

//go:build integration

package cli_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Migrate and prune commands", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
	})

	It("applies every migration and reports status", func() {
		output, err := mentorlik(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)

		output, err = mentorlik(ctx, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), "migrate status failed: %s", output)
		Expect(output).To(ContainSubstring("[x] 000001_create_accounts"))
		Expect(output).To(ContainSubstring("[x] 000002_create_verification_tokens"))

		output, err = mentorlik(ctx, "migrate", "version")
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(ContainSubstring("2"))
	})

	It("refuses migrate down without --yes", func() {
		output, err := mentorlik(ctx, "migrate", "down")
		Expect(err).To(HaveOccurred())
		Expect(output).To(ContainSubstring("--yes"))
	})

	It("prunes only expired verification tokens", func() {
		output, err := mentorlik(ctx, "migrate", "up")
		Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)

		now := time.Now().UTC()
		insert := `INSERT INTO verification_tokens (id, token_hash, email, account_id, role, created_at, expires_at)
			VALUES ($1, $2, 'a@x.com', '01HZN3XS000000000000000001', 'student', $3, $4)`
		_, err = env.pool.Exec(ctx, insert, "01HZN3XS000000000000000010", "hash-expired", now.Add(-48*time.Hour), now.Add(-24*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		_, err = env.pool.Exec(ctx, insert, "01HZN3XS000000000000000011", "hash-live", now, now.Add(24*time.Hour))
		Expect(err).NotTo(HaveOccurred())

		output, err = mentorlik(ctx, "prune-tokens")
		Expect(err).NotTo(HaveOccurred(), "prune-tokens failed: %s", output)
		Expect(output).To(ContainSubstring("Deleted 1 expired verification token(s)"))

		var remaining string
		Expect(env.pool.QueryRow(ctx, "SELECT token_hash FROM verification_tokens").Scan(&remaining)).To(Succeed())
		Expect(remaining).To(Equal("hash-live"))
	})
})
