package bedrock

// Common AWS Bedrock model identifiers accepted by Converse
const (
	// Amazon Nova models
	ModelNovaMicro = "amazon.nova-micro-v1:0"
	ModelNovaLite  = "amazon.nova-lite-v1:0"
	ModelNovaPro   = "amazon.nova-pro-v1:0"

	// Amazon Titan models
	ModelTitanTextPremier = "amazon.titan-text-premier-v1:0"
	ModelTitanTextExpress = "amazon.titan-text-express-v1"
	ModelTitanTextLite    = "amazon.titan-text-lite-v1"

	// Anthropic Claude models
	ModelClaude35Sonnet = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	ModelClaude3Opus    = "anthropic.claude-3-opus-20240229-v1:0"
	ModelClaude3Sonnet  = "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelClaude3Haiku   = "anthropic.claude-3-haiku-20240307-v1:0"

	// Meta Llama models
	ModelLlama3_70B = "meta.llama3-70b-instruct-v1:0"
	ModelLlama3_8B  = "meta.llama3-8b-instruct-v1:0"

	// Mistral models
	ModelMistral7B   = "mistral.mistral-7b-instruct-v0:2"
	ModelMixtral8x7B = "mistral.mixtral-8x7b-instruct-v0:1"

	// Cohere models
	ModelCohereCommandR     = "cohere.command-r-v1:0"
	ModelCohereCommandRPlus = "cohere.command-r-plus-v1:0"
)
