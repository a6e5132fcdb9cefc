package bootstrap_test

import (
	"context"
	"errors"
	"slices"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/provisioning/bootstrap"
	ltesting "github.com/imamik/ledgerlab/internal/testing"
	"github.com/imamik/ledgerlab/internal/util/naming"
)

var _ = Describe("Bootstrap", func() {
	var (
		ctx    context.Context
		prov   *ltesting.FakeProvisioner
		stores *ltesting.FakeSecretStores
		tool   *ltesting.FakeGenesisTool
		cfg    *config.Config
	)

	bootstrapWith := func(b *ltesting.ConfigBuilder) (*provisioning.ClusterDescriptor, error) {
		cfg = b.WithWorkDir(GinkgoT().TempDir()).Build()
		o := bootstrap.New(cfg, prov,
			bootstrap.WithSecretStores(stores),
			bootstrap.WithGenesisTool(tool),
			bootstrap.WithTimeouts(config.TestTimeouts()),
		)
		return o.Bootstrap(ctx, cfg.Topology, bootstrap.Options{})
	}

	BeforeEach(func() {
		ctx = context.Background()
		prov = ltesting.NewFakeProvisioner()
		stores = ltesting.NewFakeSecretStores()
		tool = ltesting.NewFakeGenesisTool()
	})

	Context("with three validators, one fullnode each and a vault secret tier", func() {
		var desc *provisioning.ClusterDescriptor

		BeforeEach(func() {
			var err error
			desc, err = bootstrapWith(ltesting.NewConfigBuilder().
				WithValidators(3).
				WithFullnodesPerValidator(1).
				WithSecretTier(true, config.BackendVault))
			Expect(err).NotTo(HaveOccurred())
		})

		It("allocates every role", func() {
			By("checking the descriptor")
			Expect(desc.SecretStores).To(HaveLen(3))
			Expect(desc.SigningProxies).To(HaveLen(3))
			Expect(desc.Validators).To(HaveLen(3))
			Expect(desc.Fullnodes).To(HaveLen(3))

			By("checking the scheduler saw one allocation per slot")
			Expect(prov.Allocations).To(ConsistOf(bootstrap.NewPlan(cfg.Topology).Slots()))
		})

		It("runs the genesis ceremony exactly once", func() {
			Expect(tool.Count("layout:")).To(Equal(1))
			Expect(tool.Count("finalize:")).To(Equal(1))
			Expect(desc.Genesis).NotTo(BeNil())
		})

		It("copies byte-identical genesis to every validator", func() {
			Expect(prov.Copies).To(HaveLen(3))
			var targets []string
			for _, c := range prov.Copies {
				Expect(c.Data).To(Equal(tool.Blob))
				targets = append(targets, c.Name)
			}
			Expect(targets).To(ConsistOf("validator-0", "validator-1", "validator-2"))
		})

		It("registers validators strictly one after another", func() {
			var order []string
			for _, call := range tool.Calls {
				if strings.HasPrefix(call, "owner:") || strings.HasPrefix(call, "set-operator:") {
					order = append(order, call)
				}
			}
			Expect(order).To(Equal([]string{
				"owner:validator-0", "set-operator:validator-0",
				"owner:validator-1", "set-operator:validator-1",
				"owner:validator-2", "set-operator:validator-2",
			}))
		})
	})

	Context("with the secret tier disabled", func() {
		It("never touches the secret tier or genesis tool", func() {
			desc, err := bootstrapWith(ltesting.NewConfigBuilder().
				WithValidators(2).
				WithSecretTier(false, config.BackendVault))
			Expect(err).NotTo(HaveOccurred())

			Expect(tool.Calls).To(BeEmpty())
			Expect(stores.Store("http://" + ltesting.AddressFor(naming.SecretStore(0)) + ":8200")).To(BeNil())
			Expect(desc.Genesis).To(BeNil())

			for _, s := range prov.SpawnsOf(provisioning.RoleValidator) {
				Expect(s.Config).To(BeAssignableToTypeOf(provisioning.ValidatorConfig{}))
				Expect(s.Config.(provisioning.ValidatorConfig).SigningProxyAddress).To(BeEmpty())
			}
		})
	})

	Context("when allocation of one fullnode fails", func() {
		It("names the failing slot and spawns nothing", func() {
			prov.FailAllocate(naming.Fullnode(1, 2), errors.New("no capacity"))

			_, err := bootstrapWith(ltesting.NewConfigBuilder().
				WithValidators(3).
				WithFullnodesPerValidator(3))
			Expect(err).To(MatchError(ContainSubstring("fullnode-1-2")))
			Expect(prov.Spawns).To(BeEmpty())
			Expect(slices.ContainsFunc(prov.Log, func(e string) bool {
				return strings.HasPrefix(e, "spawn:")
			})).To(BeFalse())
		})
	})

	Context("when a secret store is briefly unavailable", func() {
		It("converges on the same key set as an undisturbed store", func() {
			url := "http://" + ltesting.AddressFor(naming.SecretStore(0)) + ":8200"
			stores.FailFirst(url, 2)

			_, err := bootstrapWith(ltesting.NewConfigBuilder().WithSecretInitRetry(3, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(stores.Store(url).Keys()).To(HaveLen(7))
			Expect(stores.Store(url).Keys()).To(HaveKey("validator-0__consensus"))
		})
	})
})
