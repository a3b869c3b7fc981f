package llm

// Narrative analysis prompts

const SystemPromptFiscalAnalyst = `Você é um contador especialista em análise fiscal de Notas Fiscais Eletrônicas (NF-e) brasileiras.
Responda sempre em português, de forma objetiva.`

const UserPromptNarrative = `Analise esta Nota Fiscal Eletrônica (NF-e) e forneça:

1. Verificação de conformidade fiscal (CFOP, NCM, impostos)
2. Identificação de possíveis irregularidades ou alertas
3. Recomendações para o destinatário
4. Análise de risco fiscal (baixo/médio/alto)

Dados da NF-e:
%s

Forneça uma análise detalhada mas concisa (máximo 500 palavras).`
