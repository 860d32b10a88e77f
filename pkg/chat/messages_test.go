package chat_test

import (
	"strings"

	"github.com/killallgit/foliochat/pkg/chat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Message", func() {
	Describe("NewUserMessage", func() {
		It("should trim the content", func() {
			msg := chat.NewUserMessage("u1", "  Hello  \n", 42)

			Expect(msg.ID).To(Equal("u1"))
			Expect(msg.Role).To(Equal(chat.RoleUser))
			Expect(msg.Content).To(Equal("Hello"))
			Expect(msg.Timestamp).To(Equal(int64(42)))
			Expect(msg.Streaming).To(BeFalse())
			Expect(msg.IsUser()).To(BeTrue())
		})
	})

	Describe("NewAssistantPlaceholder", func() {
		It("should start empty and streaming", func() {
			msg := chat.NewAssistantPlaceholder("a1", 7)

			Expect(msg.IsAssistant()).To(BeTrue())
			Expect(msg.Content).To(BeEmpty())
			Expect(msg.Streaming).To(BeTrue())
			Expect(msg.IsEmpty()).To(BeTrue())
		})
	})

	Describe("DeriveTitle", func() {
		It("should keep short content verbatim", func() {
			Expect(chat.DeriveTitle("Tell me about your projects")).To(Equal("Tell me about your projects"))
		})

		It("should keep exactly 50 characters verbatim", func() {
			content := strings.Repeat("a", 50)
			Expect(chat.DeriveTitle(content)).To(Equal(content))
		})

		It("should cut longer content at 50 characters and add an ellipsis", func() {
			content := strings.Repeat("b", 51)
			Expect(chat.DeriveTitle(content)).To(Equal(strings.Repeat("b", 50) + "..."))
		})

		It("should count characters, not bytes", func() {
			content := strings.Repeat("é", 60)
			Expect(chat.DeriveTitle(content)).To(Equal(strings.Repeat("é", 50) + "..."))
		})

		It("should fall back to the default title", func() {
			Expect(chat.DeriveTitle("")).To(Equal(chat.DefaultSessionTitle))
		})
	})

	Describe("DefaultIDs", func() {
		It("should mint distinct ids", func() {
			ids := chat.DefaultIDs{}
			Expect(ids.MessageID()).NotTo(Equal(ids.MessageID()))
			Expect(ids.SessionID()).NotTo(Equal(ids.SessionID()))
		})
	})
})
