package pipeline

const helpText = `# 🤖 Teacher Bot Commands

## Personal Commands
- /profile - View your learning profile
- /profile <question> - Ask about your learning history
- /reset - Clear your conversation history
- /globalreset - Reset all conversations (admin only)

## AI-Powered Commands
- /arxiv <arxiv_url_or_id> [--memory] <question> - Learn from ArXiv papers
- /ddg <query> <question> - Search DuckDuckGo and learn
- /crawl <url1> [url2 url3...] <question> - Learn from web pages
- /query <question> - Query stored data
- /links [limit] - Collect and organize links from recent messages

## Chat Mode
- Send a plain message to start a conversation

## Memory Feature
The --memory flag saves context between queries:
- Add --memory before your question to enable persistent memory
- Great for follow-up questions about the same topic
- Use /reset to clear saved memory when you're done

## Examples
` + "```" + `
/profile
/arxiv --memory 1706.03762 Tell me about attention mechanisms
/arxiv 1706.03762 2104.05704 Compare these two papers
/ddg "python asyncio" How to use async/await?
/crawl https://pypi.org/project/ollama/ Usage examples?
/query count searches by date
/links 500
` + "```"

const learnText = `# 📚 Learning Resources

## Documentation
- [Ollama API](https://github.com/ollama/ollama/blob/main/docs/api.md)
- [Ollama Python](https://pypi.org/project/ollama/)
- [Hugging Face](https://huggingface.co/docs)
- [Transformers](https://huggingface.co/docs/transformers/index)

## Key Papers
- [Attention Is All You Need](https://arxiv.org/abs/1706.03762)

## Commands to Try
` + "```" + `
/arxiv 1706.03762 What is self-attention?
/ddg "ollama api" How do I use it?
/crawl https://pypi.org/project/ollama/ Usage examples?
` + "```" + `

## Study Tips
1. Start with official documentation
2. Try code examples
3. Ask specific questions
4. Practice with examples`
